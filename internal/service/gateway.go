// Package service implements the inbound delivery pipeline and agent sends.
package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/intent"
	"github.com/capitalize-ai/chat-gateway/internal/interaction"
	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
	"github.com/capitalize-ai/chat-gateway/pkg/tracing"
)

// Limiter enforces the per-conversation message quota.
type Limiter interface {
	Allow(ctx context.Context, conversationID string) bool
}

// Resolver maps a conversation to its tenant configuration. Both methods
// return nil when the conversation is unlinked.
type Resolver interface {
	Resolve(ctx context.Context, chatID model.ChatID, sender model.Sender) *model.TenantConfig
	Lookup(ctx context.Context, chatID model.ChatID) *model.TenantConfig
}

// Recorder persists interactions, returning "" on failure.
type Recorder interface {
	Log(ctx context.Context, e interaction.Entry) string
}

// Dispatcher sends text to a conversation.
type Dispatcher interface {
	Send(ctx context.Context, chatID model.ChatID, text string, replyTo int) bool
}

// AttachmentResolver fills in an attachment's URL. It is called only for
// messages that passed the rate limiter and resolved to a tenant.
type AttachmentResolver interface {
	ResolveAttachment(ctx context.Context, chatID model.ChatID, att *model.Attachment)
}

// Notifier signals new interactions without blocking.
type Notifier interface {
	Notify(ctx context.Context, ev model.InteractionEvent)
}

// Deps are the collaborators of a Gateway.
type Deps struct {
	Limiter    Limiter
	Resolver   Resolver
	Recorder   Recorder
	Dispatcher Dispatcher
	Notifier   Notifier
	// Attachments is optional; without it attachments are logged without a URL.
	Attachments AttachmentResolver
}

// Gateway runs inbound deliveries through verification, rate limiting, tenant
// resolution, logging, reply and notification.
type Gateway struct {
	secret     string
	limiter    Limiter
	resolver   Resolver
	recorder   Recorder
	dispatcher Dispatcher
	notifier   Notifier
	files      AttachmentResolver
	logger     *logger.Logger
}

// NewGateway creates a gateway. An empty webhookSecret disables verification.
func NewGateway(webhookSecret string, deps Deps, log *logger.Logger) *Gateway {
	return &Gateway{
		secret:     webhookSecret,
		limiter:    deps.Limiter,
		resolver:   deps.Resolver,
		recorder:   deps.Recorder,
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
		files:      deps.Attachments,
		logger:     log.Named("gateway"),
	}
}

// VerifySecret compares provided with configured in constant time. With no
// configured secret every request passes.
func VerifySecret(provided, configured string) bool {
	if configured == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}

// Authenticate checks a delivery's secret. On failure the returned result is
// terminal and nothing else may be done for the delivery.
func (g *Gateway) Authenticate(provided string) (Result, bool) {
	if VerifySecret(provided, g.secret) {
		return Result{}, true
	}

	t := newTrace()
	g.advance(t, StateAuthRejected)
	res := t.result()
	metrics.DeliveryOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res, false
}

// Process handles one authenticated message. It always returns a terminal
// result; collaborator failures degrade the result rather than abort it.
func (g *Gateway) Process(ctx context.Context, msg *model.InboundMessage) Result {
	t := newTrace()
	g.advance(t, StateSecretChecked)

	in := intent.Classify(msg)
	if in.Kind == intent.Ignore {
		if in.Command != "" {
			g.logger.Debug("unknown command ignored",
				zap.String("conversation_id", msg.ConversationID.String()),
				zap.String("command", in.Command),
			)
		}
		g.advance(t, StateIgnored)
		return g.finish(t, "", false)
	}

	ctx, span := tracing.Tracer().Start(ctx, "gateway.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", msg.ConversationID.String()),
		attribute.String("intent", in.Kind.String()),
	)

	log := g.logger.ForConversation(msg.ConversationID.String(), "")
	log.Debug("message received",
		zap.Int("message_id", msg.MessageID),
		zap.Stringer("intent", in.Kind),
		zap.String("command", in.Command),
	)

	if !g.limiter.Allow(ctx, msg.ConversationID.String()) {
		g.advance(t, StateRateRejected)
		replied := g.dispatcher.Send(ctx, msg.ConversationID, throttleReply, 0)
		return g.finish(t, "", replied)
	}
	g.advance(t, StateRateChecked)

	var res Result
	switch in.Kind {
	case intent.Help:
		g.advance(t, StateAnswered)
		res = g.finish(t, "", g.dispatcher.Send(ctx, msg.ConversationID, helpReply, 0))
	case intent.Status:
		res = g.status(ctx, t, msg)
	case intent.Start:
		res = g.start(ctx, t, msg)
	default:
		res = g.message(ctx, t, msg, in.Kind)
	}

	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	return res
}

func (g *Gateway) status(ctx context.Context, t *trace, msg *model.InboundMessage) Result {
	cfg := g.resolver.Lookup(ctx, msg.ConversationID)
	if cfg == nil {
		g.advance(t, StateUnlinked)
		return g.finish(t, "", g.dispatcher.Send(ctx, msg.ConversationID, statusUnlinkedReply, 0))
	}
	g.advance(t, StateTenantResolved)
	g.advance(t, StateAnswered)
	return g.finish(t, "", g.dispatcher.Send(ctx, msg.ConversationID, statusAvailableReply, 0))
}

func (g *Gateway) start(ctx context.Context, t *trace, msg *model.InboundMessage) Result {
	name := msg.Sender.DisplayName()
	cfg := g.resolver.Lookup(ctx, msg.ConversationID)
	if cfg == nil {
		g.advance(t, StateUnlinked)
		return g.finish(t, "", g.dispatcher.Send(ctx, msg.ConversationID, unlinkedWelcome(name), 0))
	}
	g.advance(t, StateTenantResolved)

	id := g.recorder.Log(ctx, interaction.Entry{
		TenantID:  cfg.TenantID,
		Type:      model.InteractionCommand,
		Direction: model.DirectionInbound,
		Content:   "/start",
		ChatID:    msg.ConversationID,
		MessageID: msg.MessageID,
		Sender:    msg.Sender,
	})
	g.advance(t, StateLogged)

	welcome := cfg.WelcomeMessage
	if welcome == "" {
		welcome = defaultWelcome(name)
	}
	replied := g.dispatcher.Send(ctx, msg.ConversationID, welcome, 0)
	g.advance(t, StateReplied)

	g.notify(ctx, t, cfg.TenantID, msg.ConversationID, id)
	return g.finish(t, id, replied)
}

// message handles chat text and media: the full resolve, log, reply and notify
// pipeline.
func (g *Gateway) message(ctx context.Context, t *trace, msg *model.InboundMessage, kind intent.Kind) Result {
	cfg := g.resolver.Resolve(ctx, msg.ConversationID, msg.Sender)
	g.logger.Debug("tenant resolution",
		zap.String("conversation_id", msg.ConversationID.String()),
		zap.String("link_state", string(cfg.State())),
	)
	if cfg == nil {
		g.advance(t, StateUnlinked)
		return g.finish(t, "", g.dispatcher.Send(ctx, msg.ConversationID, unlinkedReply, 0))
	}
	g.advance(t, StateTenantResolved)

	att := g.attachment(ctx, msg)
	id := g.recorder.Log(ctx, interaction.Entry{
		TenantID:   cfg.TenantID,
		Type:       model.InteractionChat,
		Direction:  model.DirectionInbound,
		Content:    content(msg, kind),
		ChatID:     msg.ConversationID,
		MessageID:  msg.MessageID,
		Sender:     msg.Sender,
		Attachment: att,
	})
	g.advance(t, StateLogged)

	replied := false
	if reply, ok := replyFor(cfg, kind); ok {
		replied = g.dispatcher.Send(ctx, msg.ConversationID, reply, 0)
		g.advance(t, StateReplied)
	}

	g.notify(ctx, t, cfg.TenantID, msg.ConversationID, id)
	return g.finish(t, id, replied)
}

// attachment returns a copy of msg's attachment with its URL resolved.
func (g *Gateway) attachment(ctx context.Context, msg *model.InboundMessage) *model.Attachment {
	if msg.Attachment == nil {
		return nil
	}
	att := *msg.Attachment
	if g.files != nil {
		g.files.ResolveAttachment(ctx, msg.ConversationID, &att)
	}
	return &att
}

// notify is skipped when logging failed since there is nothing to refresh.
func (g *Gateway) notify(ctx context.Context, t *trace, tenantID string, chatID model.ChatID, interactionID string) {
	if interactionID == "" {
		return
	}
	g.notifier.Notify(ctx, interaction.NewEvent(tenantID, chatID, interactionID))
	g.advance(t, StateNotifyAttempted)
}

func (g *Gateway) advance(t *trace, next State) {
	if err := t.to(next); err != nil {
		g.logger.Error("state machine violation", zap.Error(err))
	}
}

func (g *Gateway) finish(t *trace, interactionID string, replied bool) Result {
	res := t.result()
	res.InteractionID = interactionID
	res.Replied = replied
	metrics.DeliveryOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func content(msg *model.InboundMessage, kind intent.Kind) string {
	switch kind {
	case intent.Photo:
		if msg.Caption != "" {
			return msg.Caption
		}
		return "[Photo]"
	case intent.Document:
		if msg.Caption != "" {
			return msg.Caption
		}
		name := ""
		if msg.Attachment != nil {
			name = msg.Attachment.Name
		}
		return fmt.Sprintf("[Document: %s]", name)
	default:
		return msg.Text
	}
}

// replyFor picks the reply for a logged message. Media is always acknowledged;
// text gets the tenant's auto-reply when enabled.
func replyFor(cfg *model.TenantConfig, kind intent.Kind) (string, bool) {
	switch kind {
	case intent.Photo:
		return photoReceivedReply, true
	case intent.Document:
		return documentReceivedReply, true
	}
	if !cfg.AutoReplyEnabled {
		return "", false
	}
	if cfg.AutoReplyMessage != "" {
		return cfg.AutoReplyMessage, true
	}
	return defaultAutoReply, true
}
