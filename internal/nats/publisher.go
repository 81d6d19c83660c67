package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

const (
	// StreamName is the stream holding chat events.
	StreamName = "CHAT_EVENTS"

	// SubjectPrefix is the prefix for all chat subjects.
	SubjectPrefix = "chat"
)

// JetStream is the part of jetstream.JetStream the publisher uses.
type JetStream interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher writes interaction events to JetStream. It is a notification sink.
type Publisher struct {
	js JetStream
}

// NewPublisher creates a publisher on the client's JetStream context.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{js: client.JetStream()}
}

// NewPublisherWithJetStream creates a publisher on js.
func NewPublisherWithJetStream(js JetStream) *Publisher {
	return &Publisher{js: js}
}

// EnsureStream creates the chat events stream if it does not exist.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Chat gateway interaction events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// EventSubject returns the subject for a conversation event.
func EventSubject(tenantID string, chatID model.ChatID, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, tenantID, chatID, eventType)
}

// Name identifies the publisher as a notification sink.
func (p *Publisher) Name() string { return "nats" }

// Notify publishes ev. The event id doubles as the JetStream message id so a
// retried publish is deduplicated.
func (p *Publisher) Notify(ctx context.Context, ev model.InteractionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := EventSubject(ev.TenantID, ev.ChatID, ev.Event)
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(ev.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
