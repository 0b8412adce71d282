package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"example.com/backstage/services/warehouse/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	source       = "warehouse"
	receiveBatch = 10
)

// Publisher sends messages to a queue or topic
type Publisher interface {
	Publish(ctx context.Context, destination string, body interface{}) error
	Close() error
}

// Handler processes one received message body. Returning an error abandons
// the message so it is redelivered.
type Handler func(ctx context.Context, body []byte) error

// ServiceBusClient publishes to and consumes from Azure Service Bus
type ServiceBusClient struct {
	client *azservicebus.Client

	mu      sync.Mutex
	senders map[string]*azservicebus.Sender
}

// NewServiceBusClient creates a new Azure Service Bus client
func NewServiceBusClient(cfg config.AzureConfig) (*ServiceBusClient, error) {
	if cfg.ConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	return &ServiceBusClient{
		client:  client,
		senders: make(map[string]*azservicebus.Sender),
	}, nil
}

func (s *ServiceBusClient) sender(destination string) (*azservicebus.Sender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sender, ok := s.senders[destination]; ok {
		return sender, nil
	}

	sender, err := s.client.NewSender(destination, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create sender for %s", destination)
	}
	s.senders[destination] = sender
	return sender, nil
}

// Publish sends body to destination. Byte slices are sent as-is, anything
// else is encoded as JSON.
func (s *ServiceBusClient) Publish(ctx context.Context, destination string, body interface{}) error {
	data, contentType, err := encode(body)
	if err != nil {
		return err
	}

	sender, err := s.sender(destination)
	if err != nil {
		return err
	}

	messageID := uuid.NewString()
	msg := &azservicebus.Message{
		MessageID:   &messageID,
		ContentType: &contentType,
		Body:        data,
		ApplicationProperties: map[string]interface{}{
			"source": source,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to send message to %s", destination)
	}
	return nil
}

func encode(body interface{}) ([]byte, string, error) {
	if raw, ok := body.([]byte); ok {
		return raw, "text/plain", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to marshal message body")
	}
	return data, "application/json", nil
}

// Consume receives messages from queue until ctx is cancelled. Each message
// is completed when handle succeeds and abandoned otherwise.
func (s *ServiceBusClient) Consume(ctx context.Context, queue string, handle Handler) error {
	receiver, err := s.client.NewReceiverForQueue(queue, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to create receiver for %s", queue)
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("Error closing receiver")
		}
	}()

	log.Info().Str("queue", queue).Msg("Consuming messages")

	for {
		messages, err := receiver.ReceiveMessages(ctx, receiveBatch, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrapf(err, "failed to receive messages from %s", queue)
		}

		for _, message := range messages {
			if err := handle(ctx, message.Body); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error processing message")
				if err := receiver.AbandonMessage(context.Background(), message, nil); err != nil {
					log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error abandoning message")
				}
				continue
			}
			if err := receiver.CompleteMessage(context.Background(), message, nil); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error completing message")
			}
		}
	}
}

// Close closes every sender and the client
func (s *ServiceBusClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, sender := range s.senders {
		if err := sender.Close(context.Background()); err != nil {
			log.Error().Err(err).Str("destination", name).Msg("Error closing sender")
		}
	}
	s.senders = map[string]*azservicebus.Sender{}

	return s.client.Close(context.Background())
}

// NoopPublisher drops every message. It stands in when Service Bus is disabled.
type NoopPublisher struct{}

// Publish logs and discards the message
func (NoopPublisher) Publish(_ context.Context, destination string, _ interface{}) error {
	log.Debug().Str("destination", destination).Msg("Service Bus disabled, message dropped")
	return nil
}

// Close does nothing
func (NoopPublisher) Close() error { return nil }
