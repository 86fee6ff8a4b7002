// Package httpapi exposes the reference calendar backend as JSON over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/api"
	"github.com/and161185/calsync/internal/backend"
	"github.com/and161185/calsync/internal/convert"
	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/model"
)

// Messages returned in the "msg" member of failure bodies.
const (
	MsgBadCredentials = "Usuario o contraseña incorrectos"
	MsgEmailTaken     = "Un usuario existe con ese correo"
	MsgRateLimited    = "Demasiados intentos, inténtelo más tarde"
	MsgNoToken        = "No hay token en la petición"
	MsgBadToken       = "Token no válido"
	MsgNotFound       = "Evento no existe por ese id"
	MsgForbidden      = "No tiene privilegio de editar este evento"
	MsgBadBody        = "Petición mal formada"
	MsgInternal       = "Hable con el administrador"
)

const maxBody = 1 << 20

// Server wires the backend services into HTTP handlers.
type Server struct {
	auth    backend.AuthService
	events  backend.EventService
	log     *zap.Logger
	metrics *metrics.Metrics
	gather  prometheus.Gatherer
}

// New constructs the HTTP server. gather may be nil to omit /metrics.
func New(auth backend.AuthService, events backend.EventService, log *zap.Logger,
	m *metrics.Metrics, gather prometheus.Gatherer) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, events: events, log: log, metrics: m, gather: gather}
}

// Handler returns the routed handler, mounted under prefix (e.g. "/api").
func (s *Server) Handler(prefix string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+prefix+"/auth", s.login)
	mux.HandleFunc("POST "+prefix+"/auth/new", s.register)
	mux.HandleFunc("GET "+prefix+"/auth/renew", s.authed(s.renew))
	mux.HandleFunc("GET "+prefix+"/events", s.authed(s.listEvents))
	mux.HandleFunc("POST "+prefix+"/events", s.authed(s.createEvent))
	mux.HandleFunc("PUT "+prefix+"/events/{id}", s.authed(s.updateEvent))
	mux.HandleFunc("DELETE "+prefix+"/events/{id}", s.authed(s.deleteEvent))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	if s.gather != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}
	return Recover(s.log, Logging(s.log, s.metrics, mux))
}

// --- auth ---

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req convert.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.auth.LoginWithIP(r.Context(), req.Email, req.Password, remoteIP(r))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			writeMsg(w, http.StatusBadRequest, MsgBadCredentials)
		case errors.Is(err, errs.ErrRateLimited):
			writeMsg(w, http.StatusTooManyRequests, MsgRateLimited)
		default:
			s.fail(w, "login", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, authResponse(res))
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req convert.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			writeMsg(w, http.StatusBadRequest, MsgEmailTaken)
			return
		}
		s.fail(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse(res))
}

func (s *Server) renew(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromCtx(r.Context())
	res, err := s.auth.Renew(r.Context(), id.UID)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			writeMsg(w, http.StatusUnauthorized, MsgBadToken)
			return
		}
		s.fail(w, "renew", err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(res))
}

func authResponse(res model.AuthResult) convert.AuthResponse {
	return convert.AuthResponse{OK: true, UID: res.UID, Name: res.Name, Token: res.Token}
}

// --- events ---

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.events.List(r.Context())
	if err != nil {
		s.fail(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, convert.EventsResponse{OK: true, Eventos: convert.FromStoredEvents(list)})
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromCtx(r.Context())
	var body convert.Event
	if !s.decode(w, r, &body) {
		return
	}
	e, err := s.events.Create(r.Context(), id, eventInput(body))
	if err != nil {
		s.fail(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.EventResponse{OK: true, Evento: convert.FromStoredEvent(e)})
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromCtx(r.Context())
	var body convert.Event
	if !s.decode(w, r, &body) {
		return
	}
	e, err := s.events.Update(r.Context(), id, r.PathValue("id"), eventInput(body))
	if err != nil {
		s.fail(w, "update event", err)
		return
	}
	writeJSON(w, http.StatusOK, convert.EventResponse{OK: true, Evento: convert.FromStoredEvent(e)})
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromCtx(r.Context())
	if err := s.events.Delete(r.Context(), id, r.PathValue("id")); err != nil {
		s.fail(w, "delete event", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func eventInput(e convert.Event) backend.EventInput {
	return backend.EventInput{
		Title: e.Title,
		Notes: e.Notes,
		Start: time.Time(e.Start),
		End:   time.Time(e.End),
	}
}

// --- plumbing ---

// authed verifies the x-token header and stores the caller in the request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := r.Header.Get(api.HeaderToken)
		if tok == "" {
			writeMsg(w, http.StatusUnauthorized, MsgNoToken)
			return
		}
		id, err := s.auth.ParseToken(tok)
		if err != nil {
			s.log.Debug("token rejected", zap.Error(err))
			writeMsg(w, http.StatusUnauthorized, MsgBadToken)
			return
		}
		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst); err != nil {
		s.log.Debug("bad body", zap.String("path", r.URL.Path), zap.Error(err))
		writeMsg(w, http.StatusBadRequest, MsgBadBody)
		return false
	}
	return true
}

// fail maps service errors onto status codes and failure bodies.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var fe *errs.FieldsError
	switch {
	case errors.As(err, &fe):
		writeFields(w, fe.Fields)
	case errors.Is(err, errs.ErrNotFound):
		writeMsg(w, http.StatusNotFound, MsgNotFound)
	case errors.Is(err, errs.ErrForbidden):
		writeMsg(w, http.StatusForbidden, MsgForbidden)
	case errors.Is(err, errs.ErrUnauthorized):
		writeMsg(w, http.StatusUnauthorized, MsgBadToken)
	default:
		s.log.Error(op, zap.Error(err))
		writeMsg(w, http.StatusInternalServerError, MsgInternal)
	}
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, convert.ErrorBody{OK: false, Msg: msg})
}

// writeFields renders field errors as an object keyed by field name.
func writeFields(w http.ResponseWriter, fields []model.FieldError) {
	byField := make(map[string]model.FieldError, len(fields))
	for _, f := range fields {
		if _, dup := byField[f.Param]; !dup {
			byField[f.Param] = f
		}
	}
	raw, err := json.Marshal(byField)
	if err != nil {
		writeMsg(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	writeJSON(w, http.StatusBadRequest, convert.ErrorBody{OK: false, Errors: raw})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
