// Package api implements the remote session/event contract over HTTP with JSON bodies.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/convert"
	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/service"
	"github.com/and161185/calsync/internal/tokenstore"
)

// HeaderToken carries the session token on every request.
const HeaderToken = "x-token"

const maxBody = 1 << 20

// Client talks to the calendar backend. The base URL is fixed at construction.
type Client struct {
	base    *url.URL
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

var _ service.RemoteSessionClient = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the overall per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records request counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTransport replaces the underlying round tripper (the token header is still injected).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if tt, ok := c.http.Transport.(*tokenTransport); ok {
			tt.next = rt
		}
	}
}

// New constructs a client for baseURL (e.g. http://localhost:4000/api).
// Tokens are read from store for every request.
func New(baseURL string, store tokenstore.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("api url: want absolute http(s) url, got %q", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &tokenTransport{store: store, next: http.DefaultTransport},
		},
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.base.String() }

// --- session ---

func (c *Client) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	var out convert.AuthResponse
	err := c.do(ctx, "login", http.MethodPost, []string{"auth"}, convert.LoginRequest{Email: email, Password: password}, &out)
	return authResult(out), err
}

func (c *Client) Register(ctx context.Context, name, email, password string) (model.AuthResult, error) {
	var out convert.AuthResponse
	err := c.do(ctx, "register", http.MethodPost, []string{"auth", "new"},
		convert.RegisterRequest{Name: name, Email: email, Password: password}, &out)
	return authResult(out), err
}

func (c *Client) Renew(ctx context.Context) (model.AuthResult, error) {
	var out convert.AuthResponse
	err := c.do(ctx, "renew", http.MethodGet, []string{"auth", "renew"}, nil, &out)
	return authResult(out), err
}

func authResult(r convert.AuthResponse) model.AuthResult {
	return model.AuthResult{Token: r.Token, UID: r.UID, Name: r.Name}
}

// --- events ---

func (c *Client) ListEvents(ctx context.Context) ([]model.CalendarEvent, error) {
	var out convert.EventsResponse
	if err := c.do(ctx, "list_events", http.MethodGet, []string{"events"}, nil, &out); err != nil {
		return nil, err
	}
	return convert.ToModelEvents(out.Eventos), nil
}

func (c *Client) CreateEvent(ctx context.Context, draft model.CalendarEvent) (string, error) {
	var out convert.EventResponse
	body := convert.FromModelEvent(draft)
	body.ID = ""
	if err := c.do(ctx, "create_event", http.MethodPost, []string{"events"}, body, &out); err != nil {
		return "", err
	}
	if out.Evento.ID == "" {
		return "", errs.NewMessageError(errs.KindServer, http.StatusOK, "create event: response without evento.id")
	}
	return out.Evento.ID, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id string, patch model.CalendarEvent) error {
	return c.do(ctx, "update_event", http.MethodPut, []string{"events", id}, convert.FromModelEvent(patch), nil)
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.do(ctx, "delete_event", http.MethodDelete, []string{"events", id}, nil, nil)
}

// do performs one call. out is decoded only on 2xx; failures come back as *errs.RemoteError.
func (c *Client) do(ctx context.Context, op, method string, path []string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		var re *errs.RemoteError
		if errors.As(err, &re) {
			outcome = string(re.Kind)
		}
		c.metrics.ObserveRequest(op, outcome, time.Since(start).Seconds())
		if err != nil {
			c.log.Debug("api call failed", zap.String("op", op), zap.Duration("dur", time.Since(start)), zap.Error(err))
		}
	}()

	var body io.Reader
	if in != nil {
		b, merr := json.Marshal(in)
		if merr != nil {
			return fmt.Errorf("marshal %s: %w", op, merr)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path...).String(), body)
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.NewNetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return errs.NewNetworkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		re := errs.NewMessageError(errs.KindServer, resp.StatusCode, "malformed response")
		re.Cause = err
		return re
	}
	return nil
}

// classify turns a non-2xx response into the tagged failure variant.
func classify(status int, raw []byte) *errs.RemoteError {
	var eb convert.ErrorBody
	_ = json.Unmarshal(raw, &eb)
	fields, ferr := convert.DecodeFieldErrors(eb.Errors)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.NewMessageError(errs.KindAuth, status, eb.Msg)
	case status >= 500:
		return errs.NewMessageError(errs.KindServer, status, eb.Msg)
	case status >= 400:
		if ferr == nil && len(fields) > 0 {
			return errs.NewFieldError(status, fields)
		}
		return errs.NewMessageError(errs.KindValidation, status, eb.Msg)
	default:
		return errs.NewMessageError(errs.KindServer, status, eb.Msg)
	}
}

// tokenTransport attaches the stored token to each outgoing request.
type tokenTransport struct {
	store tokenstore.Store
	next  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.store != nil {
		if tok, ok, err := t.store.Get(tokenstore.KeyToken); err == nil && ok && tok != "" {
			req = req.Clone(req.Context())
			req.Header.Set(HeaderToken, tok)
		}
	}
	return t.next.RoundTrip(req)
}
