package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/api"
	"github.com/and161185/calsync/internal/config"
	"github.com/and161185/calsync/internal/logging"
	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/service"
	"github.com/and161185/calsync/internal/tokenstore"
)

// annotLongRunning marks commands that keep running; their error messages clear on the real timer.
const annotLongRunning = "long-running"

// errNotLoggedIn is returned by commands that need a valid session.
var errNotLoggedIn = errors.New("not logged in (run: calendar login)")

// app holds what the subcommands share; it is filled in by setup.
type app struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
	errOut  io.Writer

	cfg     *config.Config
	log     *zap.Logger
	reg     *prometheus.Registry
	store   tokenstore.Store
	client  *api.Client
	auth    *service.AuthStateMachine
	events  *service.CalendarEventStore
	session *service.SessionCoordinator
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "calendar",
		Short: "Calendar client: session and events",
		Long: `calendar signs in to the calendar service, keeps the session token on disk
and lists, creates, updates and deletes events.

Configuration comes from calsync.yaml (working directory or the user config
directory) and CALSYNC_* environment variables, e.g. CALSYNC_API_URL.`,
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(schedulerFor(cmd))
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetVersionTemplate(`{{printf "calendar %s\n" .Version}}`)
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: calsync.yaml in . or the user config dir)")
	root.PersistentFlags().String("api-url", "", "calendar API base URL")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = a.v.BindPFlag("api_url", root.PersistentFlags().Lookup("api-url"))
	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newRenewCmd(a),
		newStatusCmd(a),
		newEventsCmd(a),
		newWatchCmd(a),
	)
	return root
}

// schedulerFor picks how transient error messages clear. One-shot commands read the
// message after the call returns, so there it is never cleared.
func schedulerFor(cmd *cobra.Command) service.Scheduler {
	if cmd.Annotations[annotLongRunning] == "true" {
		return service.RealScheduler{}
	}
	return &service.ManualScheduler{}
}

// setup loads the configuration and wires the client core.
func (a *app) setup(sched service.Scheduler) error {
	config.Init(a.v, a.cfgFile)
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.log, err = logging.New(cfg.LogLevel, true); err != nil {
		return err
	}

	switch cfg.TokenStore.Backend {
	case config.BackendMemory:
		a.store = tokenstore.NewMemory()
	default:
		path := cfg.TokenStore.Path
		if path == "" {
			path = tokenstore.DefaultPath()
		}
		a.store = tokenstore.NewFile(filepath.Clean(path), cfg.TokenStore.Passphrase)
	}

	a.reg = prometheus.NewRegistry()
	m := metrics.New(a.reg)

	a.client, err = api.New(cfg.APIURL, a.store,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(a.log.Named("api")),
		api.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	notify := service.NotifierFunc(func(title, msg string) {
		fmt.Fprintf(a.errOut, "%s: %s\n", title, msg)
	})
	a.auth = service.NewAuthStateMachine(sched, a.log.Named("auth"), m)
	a.events = service.NewCalendarEventStore(a.client, a.auth, notify, a.log.Named("events"), m)
	a.session = service.NewSessionCoordinator(a.client, a.store, a.auth, a.events, a.log.Named("session"), m)
	return nil
}

// resume renews the stored session, as the client does on start, and fails
// when no valid session remains.
func (a *app) resume(ctx context.Context) (model.Session, error) {
	if err := a.session.RenewSession(ctx); err != nil {
		a.log.Debug("resume", zap.Error(err))
	}
	s := a.session.Session()
	if s.Status != model.StatusAuthenticated {
		return s, errNotLoggedIn
	}
	return s, nil
}

func printSession(w io.Writer, s model.Session) {
	switch {
	case s.User != nil:
		fmt.Fprintf(w, "%s as %s (uid %s)\n", s.Status, s.User.Name, s.User.UID)
	default:
		fmt.Fprintln(w, s.Status)
	}
}
