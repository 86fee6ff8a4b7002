package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/model"
)

// How long a failure message stays visible before it clears itself.
const (
	CredentialErrorWindow   = 10 * time.Millisecond
	RegistrationErrorWindow = 1000 * time.Millisecond
)

// AuthStateMachine owns the Session: status, user and the transient error message.
type AuthStateMachine struct {
	mu      sync.Mutex
	session model.Session

	// gen increments on every transition; a deferred clear only applies to its own generation.
	gen         uint64
	cancelClear func() bool

	sched   Scheduler
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewAuthStateMachine constructs the machine in the checking state.
func NewAuthStateMachine(sched Scheduler, log *zap.Logger, m *metrics.Metrics) *AuthStateMachine {
	if sched == nil {
		sched = RealScheduler{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthStateMachine{
		session: model.Session{Status: model.StatusChecking},
		sched:   sched,
		log:     log,
		metrics: m,
	}
}

// BeginCheck moves to checking and drops any error message.
func (a *AuthStateMachine) BeginCheck() {
	a.transition("", model.StatusChecking, nil, "", 0)
}

// Succeed moves to authenticated with u as the current user.
func (a *AuthStateMachine) Succeed(u model.User) {
	a.transition("", model.StatusAuthenticated, &u, "", 0)
}

// Fail moves from checking to not-authenticated without a user. A non-empty
// message is shown for clearAfter and then cleared, unless another transition
// happens first. In any other state Fail does nothing and reports false.
func (a *AuthStateMachine) Fail(message string, clearAfter time.Duration) bool {
	return a.transition(model.StatusChecking, model.StatusNotAuthenticated, nil, message, clearAfter)
}

// Logout moves to not-authenticated, clearing user and message immediately.
func (a *AuthStateMachine) Logout() {
	a.transition("", model.StatusNotAuthenticated, nil, "", 0)
}

// transition applies the change when the current status is from, or always when from is empty.
func (a *AuthStateMachine) transition(from, status model.Status, u *model.User, msg string, clearAfter time.Duration) bool {
	a.mu.Lock()
	if from != "" && a.session.Status != from {
		cur := a.session.Status
		a.mu.Unlock()
		a.log.Debug("auth transition ignored", zap.String("from", string(cur)), zap.String("to", string(status)))
		return false
	}
	if a.cancelClear != nil {
		a.cancelClear()
		a.cancelClear = nil
	}
	a.gen++
	a.session = model.Session{Status: status, User: u, ErrorMessage: msg}
	if msg != "" && clearAfter > 0 {
		gen := a.gen
		a.cancelClear = a.sched.AfterFunc(clearAfter, func() { a.clearError(gen) })
	}
	a.mu.Unlock()

	a.metrics.Transition(string(status))
	fields := []zap.Field{zap.String("status", string(status))}
	if u != nil {
		fields = append(fields, zap.String("uid", u.UID))
	}
	if msg != "" {
		fields = append(fields, zap.Bool("error_message", true), zap.Duration("clear_after", clearAfter))
	}
	a.log.Debug("auth transition", fields...)
	return true
}

func (a *AuthStateMachine) clearError(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		return
	}
	a.session.ErrorMessage = ""
	a.cancelClear = nil
}

// Snapshot returns a copy of the current session.
func (a *AuthStateMachine) Snapshot() model.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Status returns the current status.
func (a *AuthStateMachine) Status() model.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Status
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (a *AuthStateMachine) CurrentUser() *model.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session.User == nil {
		return nil
	}
	u := *a.session.User
	return &u
}
