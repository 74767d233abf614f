package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"intake/internal/config"
	"intake/internal/model"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives application events when none is configured.
const DefaultTopic = "partner-application-events"

// MessageWriter publishes messages. *kafka.Writer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a synchronous writer keyed by application id.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// KafkaNotifier publishes StatusEvents for downstream consumers.
type KafkaNotifier struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaNotifier wraps writer.
func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, now: time.Now}
}

func (n *KafkaNotifier) publish(ctx context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  n.now(),
	}); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) ApplicationReceived(ctx context.Context, app *model.PartnerApplication) error {
	return n.publish(ctx, app.ID, StatusEvent{
		Type:          EventApplicationReceived,
		ApplicationID: app.ID,
		PartnerType:   app.PartnerType,
		To:            app.Status,
		OccurredAt:    n.now().UTC(),
	})
}

func (n *KafkaNotifier) NotifyStatusChange(ctx context.Context, app *model.PartnerApplication, from, to model.ApplicationStatus) error {
	return n.publish(ctx, app.ID, StatusEvent{
		Type:          EventStatusChanged,
		ApplicationID: app.ID,
		PartnerType:   app.PartnerType,
		From:          from,
		To:            to,
		ReviewerID:    app.ReviewerID,
		OccurredAt:    n.now().UTC(),
	})
}

type contactEvent struct {
	Type       string    `json:"type"`
	ContactID  string    `json:"contact_id"`
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (n *KafkaNotifier) ContactReceived(ctx context.Context, msg *model.ContactMessage) error {
	return n.publish(ctx, msg.ID, contactEvent{
		Type:       EventContactReceived,
		ContactID:  msg.ID,
		Subject:    msg.Subject,
		OccurredAt: n.now().UTC(),
	})
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
