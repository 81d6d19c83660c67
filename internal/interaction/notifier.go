package interaction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

// DefaultNotifyTimeout bounds a single sink delivery.
const DefaultNotifyTimeout = 5 * time.Second

// Sink receives new-interaction events.
type Sink interface {
	Name() string
	Notify(ctx context.Context, ev model.InteractionEvent) error
}

// Notifier delivers events to every sink without making the caller wait.
type Notifier struct {
	sinks   []Sink
	timeout time.Duration
	logger  *logger.Logger
	wg      sync.WaitGroup
}

// NewNotifier creates a notifier over sinks.
func NewNotifier(timeout time.Duration, log *logger.Logger, sinks ...Sink) *Notifier {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	return &Notifier{
		sinks:   sinks,
		timeout: timeout,
		logger:  log.Named("notifier"),
	}
}

// NewEvent builds a new_message event.
func NewEvent(tenantID string, chatID model.ChatID, interactionID string) model.InteractionEvent {
	return model.InteractionEvent{
		ID:            uuid.Must(uuid.NewV7()).String(),
		TenantID:      tenantID,
		ChatID:        chatID,
		InteractionID: interactionID,
		Event:         model.EventTypeNewMessage,
		CreatedAt:     time.Now().UTC(),
	}
}

// Notify starts delivery of ev to each sink and returns immediately. Deliveries
// outlive ctx's cancellation but not the notifier timeout. Sink failures are
// logged only.
func (n *Notifier) Notify(ctx context.Context, ev model.InteractionEvent) {
	base := context.WithoutCancel(ctx)
	for _, sink := range n.sinks {
		n.wg.Add(1)
		metrics.NotificationsInFlight.Inc()
		go func(sink Sink) {
			defer n.wg.Done()
			defer metrics.NotificationsInFlight.Dec()

			sctx, cancel := context.WithTimeout(base, n.timeout)
			defer cancel()

			err := sink.Notify(sctx, ev)
			metrics.Notifications.WithLabelValues(sink.Name(), metrics.ResultLabel(err == nil)).Inc()
			if err != nil {
				n.logger.Warn("notification failed",
					zap.String("sink", sink.Name()),
					zap.String("conversation_id", ev.ChatID.String()),
					zap.String("interaction_id", ev.InteractionID),
					zap.Error(err),
				)
			}
		}(sink)
	}
}

// Wait blocks until all started deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
