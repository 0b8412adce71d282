package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that binds waiting employees to free trucks
and audits product demand aggregates against their orders`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return errors.Wrap(err, "failed to create scheduler")
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(a.cfg.Worker.RebindInterval),
			gocron.NewTask(func() {
				bound, err := a.service.BindPendingEmployees(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to bind waiting employees")
					return
				}
				if bound > 0 {
					log.Info().Int("bound", bound).Msg("Bound waiting employees to free trucks")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return errors.Wrap(err, "failed to schedule rebind job")
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(a.cfg.Worker.ReconcileInterval),
			gocron.NewTask(func() {
				report, err := a.service.AuditAggregates(ctx, a.cfg.Worker.ReconcileRepair)
				if err != nil {
					log.Error().Err(err).Msg("Failed to audit product aggregates")
					return
				}
				log.Info().
					Int("drifted", len(report.Drifted)).
					Int("repaired", report.Repaired).
					Msg("Audited product aggregates")
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return errors.Wrap(err, "failed to schedule audit job")
		}

		log.Info().
			Dur("rebind_interval", a.cfg.Worker.RebindInterval).
			Dur("reconcile_interval", a.cfg.Worker.ReconcileInterval).
			Bool("reconcile_repair", a.cfg.Worker.ReconcileRepair).
			Msg("Starting worker jobs")
		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
