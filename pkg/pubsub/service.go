package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	// Source is attached to every message so subscribers can filter by emitting instance
	Source string `mapstructure:"source"`
}

// Event is a lifecycle notification published as a JSON message
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	ClientID   string            `json:"client_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher publishes lifecycle events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type PubSubService struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	config *PubSubConfig
}

func NewPubSubService(ctx context.Context, cfg *PubSubConfig) (*PubSubService, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PubSub project ID is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create PubSub client: %w", err)
	}

	service, err := NewPubSubServiceWithClient(ctx, client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return service, nil
}

// NewPubSubServiceWithClient uses an existing client, creating the topic when missing
func NewPubSubServiceWithClient(ctx context.Context, client *pubsub.Client, cfg *PubSubConfig) (*PubSubService, error) {
	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}

	if !exists {
		logger.Base().Info("Topic does not exist, creating", zap.String("topicname", cfg.TopicName))
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", cfg.TopicName, err)
		}
		logger.Base().Info("Topic created successfully", zap.String("topicname", cfg.TopicName))
	}

	return &PubSubService{
		client: client,
		topic:  topic,
		config: cfg,
	}, nil
}

// Publish sends the event and waits for the server acknowledgement
func (p *PubSubService) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	message := &pubsub.Message{
		Attributes: map[string]string{
			"type":      event.Type,
			"client_id": event.ClientID,
			"source":    p.config.Source,
		},
		Data: data,
	}

	result := p.topic.Publish(ctx, message)
	if _, err := result.Get(ctx); err != nil {
		logger.Base().Error("Failed to publish lifecycle event", zap.String("type", event.Type), zap.String("client_id", event.ClientID), zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Base().Info("Published lifecycle event", zap.String("type", event.Type), zap.String("client_id", event.ClientID), zap.String("event_id", event.ID))
	return nil
}

func (p *PubSubService) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// NoopPublisher drops events; used when no Pub/Sub project is configured
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error {
	logger.Debug(ctx, "Lifecycle event not published (pubsub disabled)", zap.String("type", event.Type), zap.String("client_id", event.ClientID))
	return nil
}

func (NoopPublisher) Close() error { return nil }
