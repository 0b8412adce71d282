// Package capture runs the QR capture session: it throttles decoded scans,
// forwards them to stock ingestion and raises an anomaly when the line goes quiet.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrTooSoon is returned for scans inside the scan delay of the last accepted one
var ErrTooSoon = errors.New("scan arrived within the scan delay")

const statusTimeout = 5 * time.Second

// Ingester stores a decoded QR payload
type Ingester interface {
	IngestQR(ctx context.Context, text string) (*models.Product, bool, error)
}

// AnomalyMessage is published when no scan arrived for the anomaly threshold
type AnomalyMessage struct {
	Anomaly string `json:"anomaly"`
}

// StatusMessage reports the session's connection state
type StatusMessage struct {
	Status string `json:"status"`
}

// Session holds the capture state for one scanner
type Session struct {
	mu sync.Mutex

	ingester  Ingester
	publisher messaging.Publisher
	topic     string

	scanDelay        time.Duration
	anomalyThreshold time.Duration
	ingestTimeout    time.Duration

	lastPayload string
	lastScan    time.Time
	lastSeen    time.Time
	lastAnomaly time.Time
}

// NewSession creates a capture session publishing telemetry to topic
func NewSession(cfg config.CaptureConfig, ingester Ingester, publisher messaging.Publisher, topic string) *Session {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &Session{
		ingester:         ingester,
		publisher:        publisher,
		topic:            topic,
		scanDelay:        cfg.ScanDelay,
		anomalyThreshold: cfg.AnomalyThreshold,
		ingestTimeout:    cfg.IngestTimeout,
	}
}

// LastPayload returns the last accepted QR text
func (s *Session) LastPayload() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPayload
}

// Start marks the session connected and starts the anomaly window at now
func (s *Session) Start(ctx context.Context, now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()

	s.publish(ctx, StatusMessage{Status: "connected"})
}

// Stop announces the session is going away
func (s *Session) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	s.publish(ctx, StatusMessage{Status: "disconnected"})
}

// Accept handles one decoded scan. Scans inside the scan delay return
// ErrTooSoon; malformed payloads return a validation error and change nothing.
func (s *Session) Accept(ctx context.Context, text string, now time.Time) (*models.Product, error) {
	s.mu.Lock()
	if !s.lastScan.IsZero() && now.Sub(s.lastScan) < s.scanDelay {
		s.mu.Unlock()
		return nil, ErrTooSoon
	}
	if _, err := services.ParseQRPayload(text); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.lastScan = now
	s.lastSeen = now
	s.lastPayload = text
	s.mu.Unlock()

	s.publish(ctx, []byte(text))

	ingestCtx := ctx
	if s.ingestTimeout > 0 {
		var cancel context.CancelFunc
		ingestCtx, cancel = context.WithTimeout(ctx, s.ingestTimeout)
		defer cancel()
	}

	product, created, err := s.ingester.IngestQR(ingestCtx, text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to ingest scan")
	}

	log.Info().
		Uint("product_id", product.ID).
		Bool("created", created).
		Int64("available_quantity", product.AvailableQuantity).
		Msg("QR scan ingested")
	return product, nil
}

// Check publishes one anomaly when no scan arrived for the threshold and
// restarts the window. It reports whether an anomaly was published.
func (s *Session) Check(ctx context.Context, now time.Time) bool {
	s.mu.Lock()
	quiet := now.Sub(s.lastSeen) > s.anomalyThreshold
	recent := !s.lastAnomaly.IsZero() && now.Sub(s.lastAnomaly) <= s.anomalyThreshold
	if !quiet || recent {
		s.mu.Unlock()
		return false
	}
	s.lastAnomaly = now
	s.lastSeen = now
	s.mu.Unlock()

	msg := AnomalyMessage{
		Anomaly: fmt.Sprintf("No QR code detected for %d seconds", int(s.anomalyThreshold.Seconds())),
	}
	log.Warn().Str("anomaly", msg.Anomaly).Msg("Capture anomaly")
	s.publish(ctx, msg)
	return true
}

func (s *Session) publish(ctx context.Context, body interface{}) {
	if err := s.publisher.Publish(ctx, s.topic, body); err != nil {
		log.Error().Err(err).Str("topic", s.topic).Msg("Failed to publish capture telemetry")
	}
}
