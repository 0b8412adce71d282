package capture

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	topic = "manufacturing-anomalies"
	scan  = "name=Widget|category=Tools|quantity=10"
)

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) IngestQR(ctx context.Context, text string) (*models.Product, bool, error) {
	args := m.Called(ctx, text)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Bool(1), args.Error(2)
}

type capturedPublisher struct {
	mu       sync.Mutex
	messages []interface{}
}

func (p *capturedPublisher) Publish(_ context.Context, destination string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if destination != topic {
		panic("unexpected destination " + destination)
	}
	p.messages = append(p.messages, body)
	return nil
}

func (p *capturedPublisher) Close() error { return nil }

func (p *capturedPublisher) all() []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interface{}(nil), p.messages...)
}

var captureConfig = config.CaptureConfig{
	ScanDelay:        5 * time.Second,
	AnomalyThreshold: 10 * time.Second,
	IngestTimeout:    time.Second,
}

func newSession(t *testing.T) (*Session, *mockIngester, *capturedPublisher) {
	ingester := new(mockIngester)
	publisher := &capturedPublisher{}
	t.Cleanup(func() { ingester.AssertExpectations(t) })
	return NewSession(captureConfig, ingester, publisher, topic), ingester, publisher
}

func TestAcceptThrottlesScans(t *testing.T) {
	s, ingester, publisher := newSession(t)
	ingester.On("IngestQR", mock.Anything, scan).Return(&models.Product{ID: 1, AvailableQuantity: 10}, true, nil).Twice()

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := s.Accept(ctx, scan, start)
	require.NoError(t, err)

	_, err = s.Accept(ctx, scan, start.Add(4*time.Second))
	assert.ErrorIs(t, err, ErrTooSoon)

	_, err = s.Accept(ctx, scan, start.Add(5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, scan, s.LastPayload())
	assert.Equal(t, []interface{}{[]byte(scan), []byte(scan)}, publisher.all())
}

func TestAcceptRejectsMalformedPayload(t *testing.T) {
	s, _, publisher := newSession(t)

	_, err := s.Accept(context.Background(), "name=Widget|quantity=ten", time.Now())
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Empty(t, s.LastPayload())
	assert.Empty(t, publisher.all())

	// a rejected scan does not start the scan delay
	assert.True(t, s.lastScan.IsZero())
}

func TestAcceptWrapsIngestFailure(t *testing.T) {
	s, ingester, _ := newSession(t)
	ingester.On("IngestQR", mock.Anything, scan).Return(nil, false, assert.AnError)

	_, err := s.Accept(context.Background(), scan, time.Now())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCheckPublishesOneAnomalyPerWindow(t *testing.T) {
	s, _, publisher := newSession(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.Start(ctx, start)

	assert.False(t, s.Check(ctx, start.Add(10*time.Second)))
	assert.True(t, s.Check(ctx, start.Add(11*time.Second)))
	assert.False(t, s.Check(ctx, start.Add(13*time.Second)))
	assert.False(t, s.Check(ctx, start.Add(21*time.Second)))
	assert.True(t, s.Check(ctx, start.Add(22*time.Second)))

	msgs := publisher.all()
	require.Len(t, msgs, 3)
	assert.Equal(t, StatusMessage{Status: "connected"}, msgs[0])
	assert.Equal(t, AnomalyMessage{Anomaly: "No QR code detected for 10 seconds"}, msgs[1])

	raw, err := json.Marshal(msgs[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"anomaly":"No QR code detected for 10 seconds"}`, string(raw))
}

func TestScanResetsAnomalyWindow(t *testing.T) {
	s, ingester, _ := newSession(t)
	ingester.On("IngestQR", mock.Anything, scan).Return(&models.Product{ID: 1}, false, nil)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.Start(ctx, start)

	_, err := s.Accept(ctx, scan, start.Add(8*time.Second))
	require.NoError(t, err)
	assert.False(t, s.Check(ctx, start.Add(15*time.Second)))
	assert.True(t, s.Check(ctx, start.Add(19*time.Second)))
}

type queueConsumer struct {
	bodies  []string
	results []error
	done    chan struct{}
}

func (q *queueConsumer) Consume(ctx context.Context, _ string, handle messaging.Handler) error {
	for _, body := range q.bodies {
		q.results = append(q.results, handle(ctx, []byte(body)))
	}
	close(q.done)
	<-ctx.Done()
	return nil
}

func TestRunnerHandlesQueuedScans(t *testing.T) {
	s, ingester, publisher := newSession(t)
	ingester.On("IngestQR", mock.Anything, scan).Return(&models.Product{ID: 1}, true, nil).Once()

	consumer := &queueConsumer{
		bodies: []string{scan, scan, "garbage"},
		done:   make(chan struct{}),
	}
	runner := NewRunner(s, consumer, "qr-scans", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- runner.Run(ctx) }()

	<-consumer.done
	cancel()
	require.NoError(t, <-errc)

	// the duplicate and the malformed scan are completed, not redelivered
	assert.Equal(t, []error{nil, nil, nil}, consumer.results)

	msgs := publisher.all()
	require.NotEmpty(t, msgs)
	assert.Equal(t, StatusMessage{Status: "connected"}, msgs[0])
	assert.Equal(t, StatusMessage{Status: "disconnected"}, msgs[len(msgs)-1])
}

func TestRunnerAbandonsFailedIngest(t *testing.T) {
	s, ingester, _ := newSession(t)
	ingester.On("IngestQR", mock.Anything, scan).Return(nil, false, assert.AnError)
	runner := NewRunner(s, &queueConsumer{}, "qr-scans", time.Hour)

	err := runner.handle(context.Background(), []byte(scan))
	assert.ErrorIs(t, err, assert.AnError)
}
