package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/tokenstore"
)

// Messages shown in Session.ErrorMessage.
const (
	MsgBadCredentials      = "Credenciales incorrectas"
	MsgRegistrationPrefix  = "Datos de registro incorrecto: "
	MsgRegistrationUnknown = "---"
)

// SessionCoordinator drives login, registration, renewal and logout, keeping
// the token store, the auth state machine and the event store consistent.
type SessionCoordinator struct {
	mu sync.Mutex
	// epoch identifies the latest session operation; older results are dropped.
	epoch uint64

	remote  SessionRemote
	store   tokenstore.Store
	auth    *AuthStateMachine
	events  *CalendarEventStore
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewSessionCoordinator wires the coordinator. events may be nil when only the session is used.
func NewSessionCoordinator(remote SessionRemote, store tokenstore.Store, auth *AuthStateMachine,
	events *CalendarEventStore, log *zap.Logger, m *metrics.Metrics) *SessionCoordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionCoordinator{
		remote:  remote,
		store:   store,
		auth:    auth,
		events:  events,
		now:     time.Now,
		log:     log,
		metrics: m,
	}
}

// Login exchanges credentials for a token. The input is checked by the server only.
// Remote failures end in not-authenticated with MsgBadCredentials and are not returned.
func (s *SessionCoordinator) Login(ctx context.Context, c model.Credentials) error {
	epoch := s.begin(true)

	res, err := s.remote.Login(ctx, c.Email, c.Password)
	return s.settle("login", epoch, func() error {
		if err != nil {
			s.log.Info("login failed", zap.String("email", c.Email), zap.Error(err))
			s.auth.Fail(MsgBadCredentials, CredentialErrorWindow)
			return nil
		}
		if err := s.establish(res); err != nil {
			s.auth.Fail(MsgBadCredentials, CredentialErrorWindow)
			return fmt.Errorf("login: %w", err)
		}
		return nil
	})
}

// Register creates an account and signs in. Failures, field errors included, end in
// not-authenticated with a message derived from the server's reply.
func (s *SessionCoordinator) Register(ctx context.Context, r model.Registration) error {
	epoch := s.begin(true)

	res, err := s.remote.Register(ctx, r.Name, r.Email, r.Password)
	return s.settle("register", epoch, func() error {
		if err != nil {
			s.log.Info("register failed", zap.String("email", r.Email), zap.Error(err))
			s.auth.Fail(RegistrationMessage(err), RegistrationErrorWindow)
			return nil
		}
		if err := s.establish(res); err != nil {
			s.auth.Fail(RegistrationMessage(err), RegistrationErrorWindow)
			return fmt.Errorf("register: %w", err)
		}
		return nil
	})
}

// RenewSession refreshes the stored token. Without a token, or when the renewal
// fails, the session is logged out.
func (s *SessionCoordinator) RenewSession(ctx context.Context) error {
	epoch := s.begin(false)

	ok, err := tokenstore.HasToken(s.store)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("token store unreadable", zap.Error(err))
		}
		return s.Logout()
	}

	res, err := s.remote.Renew(ctx)
	return s.settle("renew", epoch, func() error {
		if err != nil {
			s.log.Info("renew failed, logging out", zap.Error(err))
			return s.logoutLocked()
		}
		if err := s.establish(res); err != nil {
			s.log.Warn("persist renewed token", zap.Error(err))
			return s.logoutLocked()
		}
		return nil
	})
}

// Logout wipes the token store, moves to not-authenticated and resets the events.
// It is idempotent. A failed wipe is returned after the state has been reset.
func (s *SessionCoordinator) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.logoutLocked()
}

func (s *SessionCoordinator) logoutLocked() error {
	err := s.store.Clear()
	s.auth.Logout()
	if s.events != nil {
		s.events.Reset()
	}
	if err != nil {
		s.log.Warn("clear token store", zap.Error(err))
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Session returns the current session snapshot.
func (s *SessionCoordinator) Session() model.Session { return s.auth.Snapshot() }

func (s *SessionCoordinator) establish(res model.AuthResult) error {
	if res.Token == "" {
		return errs.NewMessageError(errs.KindServer, 0, "response without token")
	}
	if err := tokenstore.SaveToken(s.store, model.Token{Value: res.Token, IssuedAt: s.now()}); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	s.auth.Succeed(res.User())
	s.log.Debug("session established", zap.String("uid", res.UID))
	return nil
}

func (s *SessionCoordinator) begin(check bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if check {
		s.auth.BeginCheck()
	}
	return s.epoch
}

// settle applies a remote result while holding mu, unless a newer session
// operation started after the call was issued.
func (s *SessionCoordinator) settle(op string, epoch uint64, apply func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.metrics.Stale(op)
		s.log.Debug("dropped stale result", zap.String("op", op))
		return fmt.Errorf("%s: %w", op, errs.ErrStaleResponse)
	}
	return apply()
}

// RegistrationMessage derives the error message for a failed registration:
// serialized field errors when present, else the server message, else a placeholder.
func RegistrationMessage(err error) string {
	var re *errs.RemoteError
	if errors.As(err, &re) {
		if re.HasFieldErrors() {
			return re.FieldsJSON()
		}
		if msg := re.ServerMessage(); msg != "" {
			return MsgRegistrationPrefix + msg
		}
	}
	return MsgRegistrationPrefix + MsgRegistrationUnknown
}
