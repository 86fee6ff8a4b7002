// Package renewal keeps a long-running client session fresh: on a cron schedule it
// renews the token and, while authenticated, reloads the events.
package renewal

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/model"
)

// DefaultSchedule renews every ten minutes.
const DefaultSchedule = "@every 10m"

// Session is the part of the session coordinator the runner drives.
type Session interface {
	RenewSession(ctx context.Context) error
	Session() model.Session
}

// Loader reloads the event store.
type Loader interface {
	Load(ctx context.Context) error
}

// Runner runs renewals on a schedule.
type Runner struct {
	cron     *cron.Cron
	schedule string
	session  Session
	events   Loader
	timeout  time.Duration
	log      *zap.Logger
	// OnTick, when set, runs after every renewal with the resulting session.
	OnTick func(model.Session)
}

// New validates schedule (standard cron or @every/@hourly descriptors).
// events may be nil to renew without reloading.
func New(schedule string, session Session, events Loader, timeout time.Duration, log *zap.Logger) (*Runner, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if err := ValidSchedule(schedule); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{log.Sugar()}
	return &Runner{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		schedule: schedule,
		session:  session,
		events:   events,
		timeout:  timeout,
		log:      log,
	}, nil
}

// ValidSchedule reports whether schedule parses as a standard cron spec or descriptor.
func ValidSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("renew schedule %q: %w", schedule, err)
	}
	return nil
}

// Run ticks once immediately, then on every schedule match until ctx is done.
// It returns after in-flight ticks have finished.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.Tick(ctx) }); err != nil {
		return fmt.Errorf("add renewal: %w", err)
	}
	r.Tick(ctx)

	r.cron.Start()
	r.log.Info("renewal started", zap.String("schedule", r.schedule))
	<-ctx.Done()

	stopped := r.cron.Stop()
	<-stopped.Done()
	r.log.Info("renewal stopped")
	return nil
}

// Tick renews the session once and reloads the events when still authenticated.
func (r *Runner) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.session.RenewSession(ctx); err != nil {
		r.log.Warn("renew session", zap.Error(err))
	}
	s := r.session.Session()
	if s.Status == model.StatusAuthenticated && r.events != nil {
		if err := r.events.Load(ctx); err != nil {
			r.log.Warn("reload events", zap.Error(err))
		}
	}
	if r.OnTick != nil {
		r.OnTick(s)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
