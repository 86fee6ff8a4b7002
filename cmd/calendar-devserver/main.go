// Command calendar-devserver serves the calendar API for local development and
// end-to-end runs, backed by memory or by PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/backend"
	"github.com/and161185/calsync/internal/limiter"
	"github.com/and161185/calsync/internal/logging"
	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/migrate"
	"github.com/and161185/calsync/internal/repository"
	"github.com/and161185/calsync/internal/repository/memory"
	"github.com/and161185/calsync/internal/repository/postgres"
	"github.com/and161185/calsync/internal/server/httpapi"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type options struct {
	addr     string
	prefix   string
	dsn      string
	jwtKey   string
	tokenTTL time.Duration
	logLevel string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("calendar-devserver", flag.ContinueOnError)
	fs.StringVar(&o.addr, "addr", ":4000", "listen address")
	fs.StringVar(&o.prefix, "prefix", "/api", "path prefix of the API routes")
	fs.StringVar(&o.dsn, "dsn", "", "PostgreSQL DSN; empty keeps everything in memory")
	fs.StringVar(&o.jwtKey, "jwt-key", "", "HS256 signing key (required)")
	fs.DurationVar(&o.tokenTTL, "token-ttl", backend.DefaultTokenTTL, "session token TTL")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.jwtKey == "" {
		return o, errors.New("missing jwt signing key (--jwt-key)")
	}
	return o, nil
}

// stores are the repositories and limiter behind the services.
type stores struct {
	users  repository.UserRepository
	events repository.EventRepository
	lim    limiter.Limiter
	close  func()
}

func openStores(ctx context.Context, dsn string, log *zap.Logger) (stores, error) {
	if dsn == "" {
		users := memory.NewUserRepo()
		log.Warn("no --dsn, data lives in memory only")
		return stores{
			users:  users,
			events: memory.NewEventRepo(users),
			lim:    limiter.NewMemory(limiter.DefaultPolicy),
			close:  func() {},
		}, nil
	}

	ver, err := migrate.Up(ctx, dsn)
	if err != nil {
		return stores{}, err
	}
	log.Info("schema ready", zap.Int64("version", ver))

	db, err := postgres.New(ctx, dsn)
	if err != nil {
		return stores{}, err
	}
	return stores{
		users:  postgres.NewUserRepo(db),
		events: postgres.NewEventRepo(db),
		lim:    limiter.NewPG(db.Pool, limiter.DefaultPolicy),
		close:  db.Close,
	}, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(o.logLevel, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", o.addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, o.dsn, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	authSvc := backend.NewAuthService(st.users, []byte(o.jwtKey), o.tokenTTL, st.lim, logger.Named("auth"))
	eventSvc := backend.NewEventService(st.events)
	app := httpapi.New(authSvc, eventSvc, logger, m, reg)

	srv := &http.Server{
		Addr:              o.addr,
		Handler:           app.Handler(o.prefix),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", o.addr), zap.String("prefix", o.prefix))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
