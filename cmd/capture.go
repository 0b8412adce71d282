package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/warehouse/internal/capture"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run the QR capture session",
	Long: `Consume decoded QR scans from Service Bus, post them to the API's store_qr
endpoint and publish capture anomalies when no scan arrives for the anomaly threshold`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.bus == nil {
		return errors.New("capture needs Azure Service Bus; set azure.enabled and azure.conn_str")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ingester, err := capture.NewHTTPIngester(a.cfg.Capture.APIURL, a.cfg.Capture.APIKey, a.cfg.Capture.IngestTimeout)
	if err != nil {
		return errors.Wrap(err, "capture posts scans to the API; set capture.api_url and capture.api_key")
	}

	session := capture.NewSession(a.cfg.Capture, ingester, a.bus, a.cfg.Azure.AnomalyTopic)
	runner := capture.NewRunner(session, a.bus, a.cfg.Azure.ScansQueue, a.cfg.Capture.AnomalyThreshold/5)

	log.Info().
		Str("queue", a.cfg.Azure.ScansQueue).
		Str("api_url", a.cfg.Capture.APIURL).
		Str("topic", a.cfg.Azure.AnomalyTopic).
		Dur("scan_delay", a.cfg.Capture.ScanDelay).
		Dur("anomaly_threshold", a.cfg.Capture.AnomalyThreshold).
		Msg("Starting capture session")

	if err := runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Capture session error")
		return err
	}

	log.Info().Msg("Capture session stopped")
	return nil
}
