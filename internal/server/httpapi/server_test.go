package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/calsync/internal/api"
	"github.com/and161185/calsync/internal/backend"
	"github.com/and161185/calsync/internal/limiter"
	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/repository/memory"
)

const prefix = "/api"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	users := memory.NewUserRepo()
	auth := backend.NewAuthService(users, []byte("test-key"), time.Hour, limiter.NewMemory(limiter.DefaultPolicy), log)
	events := backend.NewEventService(memory.NewEventRepo(users))
	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(New(auth, events, log, metrics.New(reg), reg).Handler(prefix))
	t.Cleanup(srv.Close)
	return srv
}

type reply struct {
	status int
	body   map[string]any
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) reply {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(api.HeaderToken, token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := reply{status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func signUp(t *testing.T, srv *httptest.Server, name, email string) string {
	t.Helper()
	r := call(t, srv, http.MethodPost, prefix+"/auth/new", "", map[string]string{"name": name, "email": email, "password": "123456"})
	require.Equal(t, http.StatusCreated, r.status)
	require.Equal(t, true, r.body["ok"])
	require.Equal(t, name, r.body["name"])
	return r.body["token"].(string)
}

func TestServer_AuthFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	tok := signUp(t, srv, "Pepe", "pepe@test.com")
	require.NotEmpty(t, tok)

	r := call(t, srv, http.MethodPost, prefix+"/auth/new", "", map[string]string{"name": "Otro", "email": "pepe@test.com", "password": "123456"})
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, MsgEmailTaken, r.body["msg"])

	r = call(t, srv, http.MethodPost, prefix+"/auth", "", map[string]string{"email": "pepe@test.com", "password": "123456"})
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "Pepe", r.body["name"])

	r = call(t, srv, http.MethodPost, prefix+"/auth", "", map[string]string{"email": "pepe@test.com", "password": "wrong-pw"})
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, MsgBadCredentials, r.body["msg"])

	r = call(t, srv, http.MethodGet, prefix+"/auth/renew", tok, nil)
	require.Equal(t, http.StatusOK, r.status)
	require.NotEmpty(t, r.body["token"])

	r = call(t, srv, http.MethodGet, prefix+"/auth/renew", "", nil)
	require.Equal(t, http.StatusUnauthorized, r.status)
	require.Equal(t, MsgNoToken, r.body["msg"])

	r = call(t, srv, http.MethodGet, prefix+"/auth/renew", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, r.status)
	require.Equal(t, MsgBadToken, r.body["msg"])
}

func TestServer_RegisterFieldErrorsKeyedByField(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	r := call(t, srv, http.MethodPost, prefix+"/auth/new", "", map[string]string{"email": "bad", "password": "1"})
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, false, r.body["ok"])
	errsObj, ok := r.body["errors"].(map[string]any)
	require.True(t, ok, "errors must be an object: %v", r.body)
	require.Contains(t, errsObj, "name")
	require.Contains(t, errsObj, "email")
	require.Contains(t, errsObj, "password")
	require.Equal(t, "El name es obligatorio", errsObj["name"].(map[string]any)["msg"])
	require.NotContains(t, errsObj["password"], "value")
}

func TestServer_EventsOwnership(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	pepe := signUp(t, srv, "Pepe", "pepe@test.com")
	ana := signUp(t, srv, "Ana", "ana@test.com")

	ev := map[string]any{"title": "Cumple", "notes": "n", "start": "2020-10-21T13:00:00Z", "end": 1603292400000}
	r := call(t, srv, http.MethodPost, prefix+"/events", pepe, ev)
	require.Equal(t, http.StatusCreated, r.status)
	created := r.body["evento"].(map[string]any)
	id := created["id"].(string)
	require.Equal(t, "Pepe", created["user"].(map[string]any)["name"])

	r = call(t, srv, http.MethodGet, prefix+"/events", ana, nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Len(t, r.body["eventos"], 1)

	r = call(t, srv, http.MethodPut, prefix+"/events/"+id, ana, ev)
	require.Equal(t, http.StatusForbidden, r.status)
	require.Equal(t, MsgForbidden, r.body["msg"])
	r = call(t, srv, http.MethodDelete, prefix+"/events/"+id, ana, nil)
	require.Equal(t, http.StatusForbidden, r.status)

	bad := map[string]any{"title": "", "start": "2020-10-21T13:00:00Z", "end": "2020-10-21T12:00:00Z"}
	r = call(t, srv, http.MethodPut, prefix+"/events/"+id, pepe, bad)
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Contains(t, r.body["errors"], "title")

	ev["title"] = "Cumple v2"
	r = call(t, srv, http.MethodPut, prefix+"/events/"+id, pepe, ev)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "Cumple v2", r.body["evento"].(map[string]any)["title"])

	r = call(t, srv, http.MethodDelete, prefix+"/events/"+id, pepe, nil)
	require.Equal(t, http.StatusOK, r.status)
	r = call(t, srv, http.MethodDelete, prefix+"/events/"+id, pepe, nil)
	require.Equal(t, http.StatusNotFound, r.status)
	require.Equal(t, MsgNotFound, r.body["msg"])

	r = call(t, srv, http.MethodGet, prefix+"/events", "", nil)
	require.Equal(t, http.StatusUnauthorized, r.status)
}

func TestServer_MalformedBodyAndHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := srv.Client().Post(srv.URL+prefix+"/auth", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r := call(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, r.status)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(b), "calsync_server_requests_total")
}
