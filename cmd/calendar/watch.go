package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/renewal"
)

func newWatchCmd(a *app) *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:         "watch",
		Short:       "Keep the session alive, renewing on a schedule until interrupted",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotLongRunning: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if schedule == "" {
				schedule = a.cfg.Renew.Schedule
			}
			r, err := renewal.New(schedule, a.session, a.events, a.cfg.RequestTimeout, a.log.Named("renewal"))
			if err != nil {
				return err
			}
			r.OnTick = func(s model.Session) {
				n := len(a.events.Events())
				fmt.Fprintf(a.out, "%s %s, %d events\n", time.Now().Format(time.TimeOnly), s.Status, n)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.MetricsAddr != "" {
				srv := &http.Server{
					Addr:              a.cfg.MetricsAddr,
					Handler:           promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					a.log.Info("metrics listening", zap.String("addr", srv.Addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("metrics server", zap.Error(err))
					}
				}()
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(sctx)
				}()
			}
			return r.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default from config, "+renewal.DefaultSchedule+")")
	return cmd
}
