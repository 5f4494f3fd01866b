package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dea-madrid/address-validation/internal/batch"
	"github.com/dea-madrid/address-validation/internal/metrics"
	"github.com/dea-madrid/address-validation/internal/web"
	"github.com/dea-madrid/address-validation/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the validation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := buildServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		m := metrics.New()
		streets, addresses := svc.registry.Size()
		m.RegistryStreets.Set(float64(streets))
		m.RegistryAddresses.Set(float64(addresses))

		log := zap.L()
		h := &handlers.Handler{
			Validator: svc.engine,
			Runner:    svc.runner,
			Store:     svc.store,
			Registry:  svc.registry,
			Rebuilder: rebuilderFunc(func(ctx context.Context) error {
				return svc.registry.Rebuild(ctx, svc.source)
			}),
			Metrics: m,
			Log:     log.Named("http"),
		}
		server := web.NewServer(cfg.Server, h, log.Named("http"))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return server.Start(ctx) })
		if cfg.Scheduler.Enabled {
			sched := batch.NewScheduler(svc.runner, svc.store,
				cfg.Scheduler.Interval, cfg.Batch.Concurrency,
				clockwork.NewRealClock(), log.Named("scheduler"))
			g.Go(func() error {
				err := sched.Start(ctx)
				if err == context.Canceled {
					return nil
				}
				return err
			})
		}
		return g.Wait()
	},
}

type rebuilderFunc func(ctx context.Context) error

func (f rebuilderFunc) Rebuild(ctx context.Context) error { return f(ctx) }

func init() {
	rootCmd.AddCommand(serveCmd)
}
