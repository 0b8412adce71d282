package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/warehouse/internal/api"
	"example.com/backstage/services/warehouse/internal/database"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for inventory, orders, shipments and fleet management`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := database.Migrate(a.db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	server := api.NewServer(a.cfg, a.service, a.tracer, a.metrics, a.prometheus)

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
	case <-ctx.Done():
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
