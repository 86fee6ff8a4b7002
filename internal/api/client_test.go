package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/tokenstore"
)

type recorded struct {
	method string
	path   string
	token  string
	body   map[string]any
}

func newServer(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, token: r.Header.Get(HeaderToken)}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(t *testing.T, srv *httptest.Server, store tokenstore.Store, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New(srv.URL+"/api", store, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	t.Parallel()
	for _, u := range []string{"", "localhost:4000", "ftp://x/api", "://bad"} {
		_, err := New(u, nil)
		require.Error(t, err, u)
	}
	c, err := New("https://calendar.example.com/api", nil)
	require.NoError(t, err)
	require.Equal(t, "https://calendar.example.com/api", c.BaseURL())
}

func TestClient_AttachesTokenHeader(t *testing.T) {
	t.Parallel()
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(tokenstore.KeyToken, "ABC-123-XYZ"))
	c := newClient(t, srv, store)

	_, err := c.Renew(context.Background())
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	require.Equal(t, "ABC-123-XYZ", (*calls)[0].token)
	require.Equal(t, "/api/auth/renew", (*calls)[0].path)

	// no token stored: header absent
	require.NoError(t, store.Clear())
	_, _ = c.Renew(context.Background())
	require.Equal(t, "", (*calls)[1].token)
}

func TestClient_LoginAndRegister(t *testing.T) {
	t.Parallel()
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"uid":"u1","name":"Pepe","token":"tok1"}`)
	})
	c := newClient(t, srv, tokenstore.NewMemory())

	res, err := c.Login(context.Background(), "pepe@test.com", "123456")
	require.NoError(t, err)
	require.Equal(t, model.AuthResult{Token: "tok1", UID: "u1", Name: "Pepe"}, res)
	require.Equal(t, http.MethodPost, (*calls)[0].method)
	require.Equal(t, "/api/auth", (*calls)[0].path)
	require.Equal(t, "pepe@test.com", (*calls)[0].body["email"])

	_, err = c.Register(context.Background(), "Pepe", "pepe@test.com", "123456")
	require.NoError(t, err)
	require.Equal(t, "/api/auth/new", (*calls)[1].path)
	require.Equal(t, "Pepe", (*calls)[1].body["name"])
}

func TestClient_EventsRoundtrip(t *testing.T) {
	t.Parallel()
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"ok":true,"eventos":[{"id":"e1","title":"Cumple","notes":"n","start":"2020-10-21T13:00:00.000Z","end":"2020-10-21T15:00:00.000Z","user":{"_id":"u1","name":"Pepe"}}]}`)
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"ok":true,"evento":{"id":"e2","title":"ignored by client"}}`)
		default:
			_, _ = io.WriteString(w, `{"ok":true}`)
		}
	})
	c := newClient(t, srv, tokenstore.NewMemory())
	ctx := context.Background()

	evs, err := c.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, "e1", evs[0].ID)
	require.Equal(t, 13, evs[0].Start.Hour())
	require.Equal(t, "u1", evs[0].User.UID)

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	id, err := c.CreateEvent(ctx, model.CalendarEvent{Title: "Standup", Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	require.Equal(t, "e2", id)
	require.Equal(t, "/api/events", (*calls)[1].path)
	require.Equal(t, "Standup", (*calls)[1].body["title"])
	require.Equal(t, "2024-05-01T09:00:00.000Z", (*calls)[1].body["start"])

	require.NoError(t, c.UpdateEvent(ctx, "e2", model.CalendarEvent{ID: "e2", Title: "Standup v2"}))
	require.Equal(t, http.MethodPut, (*calls)[2].method)
	require.Equal(t, "/api/events/e2", (*calls)[2].path)

	require.NoError(t, c.DeleteEvent(ctx, "e2"))
	require.Equal(t, http.MethodDelete, (*calls)[3].method)
	require.Equal(t, "/api/events/e2", (*calls)[3].path)
}

func TestClient_CreateWithoutIDIsServerFailure(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"evento":{}}`)
	})
	c := newClient(t, srv, tokenstore.NewMemory())
	_, err := c.CreateEvent(context.Background(), model.CalendarEvent{Title: "x"})
	require.ErrorIs(t, err, errs.ErrServer)
}

func TestClient_ClassifiesFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		body    string
		want    error
		payload errs.PayloadKind
		text    string
	}{
		{"bad credentials", 401, `{"ok":false,"msg":"Password incorrecto"}`, errs.ErrUnauthorized, errs.PayloadMessage, "Password incorrecto"},
		{"forbidden", 403, `{"ok":false,"msg":"No tiene privilegio"}`, errs.ErrUnauthorized, errs.PayloadMessage, "No tiene privilegio"},
		{"field errors array", 400, `{"ok":false,"errors":[{"msg":"El nombre es obligatorio","param":"name"}]}`, errs.ErrValidation, errs.PayloadFieldErrors, ""},
		{"field errors object", 400, `{"ok":false,"errors":{"email":{"msg":"El email es obligatorio"}}}`, errs.ErrValidation, errs.PayloadFieldErrors, ""},
		{"message", 400, `{"ok":false,"msg":"El usuario ya existe"}`, errs.ErrValidation, errs.PayloadMessage, "El usuario ya existe"},
		{"not found", 404, `{"ok":false,"msg":"Evento no existe"}`, errs.ErrNotFound, errs.PayloadMessage, "Evento no existe"},
		{"server", 500, `{"ok":false,"msg":"Hable con el administrador"}`, errs.ErrServer, errs.PayloadMessage, "Hable con el administrador"},
		{"garbled", 502, `<html>bad gateway</html>`, errs.ErrServer, errs.PayloadMessage, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			c := newClient(t, srv, tokenstore.NewMemory())
			_, err := c.Login(context.Background(), "a@b.c", "123456")
			require.ErrorIs(t, err, tc.want)

			var re *errs.RemoteError
			require.True(t, errors.As(err, &re))
			require.Equal(t, tc.status, re.Status)
			require.Equal(t, tc.payload, re.Payload)
			require.Equal(t, tc.text, re.Text)
		})
	}
}

func TestClient_NetworkFailureAndMetrics(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c, err := New(url+"/api", tokenstore.NewMemory(), WithMetrics(m), WithTimeout(2*time.Second))
	require.NoError(t, err)

	_, err = c.ListEvents(context.Background())
	require.ErrorIs(t, err, errs.ErrNetwork)
	require.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("list_events", "network")))
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"eventos":"nope"}`)
	})
	c := newClient(t, srv, tokenstore.NewMemory())
	_, err := c.ListEvents(context.Background())
	require.ErrorIs(t, err, errs.ErrServer)
}

type countingRT struct {
	n    int
	next http.RoundTripper
}

func (c *countingRT) RoundTrip(r *http.Request) (*http.Response, error) {
	c.n++
	return c.next.RoundTrip(r)
}

func TestWithTransport_KeepsTokenInjection(t *testing.T) {
	t.Parallel()
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"eventos":[]}`)
	})
	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(tokenstore.KeyToken, "tok"))
	rt := &countingRT{next: http.DefaultTransport}
	c := newClient(t, srv, store, WithTransport(rt))

	_, err := c.ListEvents(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rt.n)
	require.Equal(t, "tok", (*calls)[0].token)
}

func TestInspectToken(t *testing.T) {
	t.Parallel()
	iat := time.Now().Add(-time.Minute).Truncate(time.Second)
	claims := sessionClaims{
		Name: "Pepe",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(2 * time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any"))
	require.NoError(t, err)

	got, err := InspectToken(tok)
	require.NoError(t, err)
	require.Equal(t, "u1", got.Subject)
	require.Equal(t, "Pepe", got.Name)
	require.True(t, got.IssuedAt.Equal(iat))
	require.False(t, got.Expired(time.Now()))
	require.True(t, got.Expired(iat.Add(3*time.Hour)))

	_, err = InspectToken("not-a-jwt")
	require.Error(t, err)
}
