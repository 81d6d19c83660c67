package telegram

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

// MaxMessageLength is Telegram's limit on a text message, counted in UTF-16
// code units.
const MaxMessageLength = 4096

var errInvalidTarget = errors.New("telegram target must be @username or chat_id")

// Dispatcher sends text messages to Telegram chats.
type Dispatcher struct {
	bot     BotAPI
	timeout time.Duration
	logger  *logger.Logger
}

// NewDispatcher creates a dispatcher. Each send gives up after timeout; zero
// leaves only the caller's context and the bot's HTTP client as limits.
func NewDispatcher(bot BotAPI, timeout time.Duration, log *logger.Logger) *Dispatcher {
	return &Dispatcher{bot: bot, timeout: timeout, logger: log.Named("dispatcher")}
}

// Send delivers text to chatID, optionally as a reply. It reports whether the
// platform accepted the message; failures are logged.
func (d *Dispatcher) Send(ctx context.Context, chatID model.ChatID, text string, replyTo int) bool {
	err := d.send(ctx, chatID, text, replyTo)
	metrics.OutboundSends.WithLabelValues(metrics.ResultLabel(err == nil)).Inc()
	if err != nil {
		d.logger.Error("failed to send message",
			zap.String("conversation_id", chatID.String()),
			zap.Int("reply_to", replyTo),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (d *Dispatcher) send(ctx context.Context, chatID model.ChatID, text string, replyTo int) error {
	msg, err := newMessage(chatID, TruncateText(SanitizeText(text)))
	if err != nil {
		return err
	}
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
	}

	_, err = call(ctx, d.timeout, func() (tgbotapi.Message, error) {
		return d.bot.Send(msg)
	})
	return err
}

func newMessage(chatID model.ChatID, text string) (tgbotapi.MessageConfig, error) {
	target := strings.TrimSpace(chatID.String())
	if strings.HasPrefix(target, "@") {
		return tgbotapi.NewMessageToChannel(target, text), nil
	}
	id, ok := model.ChatID(target).Int64()
	if !ok {
		return tgbotapi.MessageConfig{}, errInvalidTarget
	}
	return tgbotapi.NewMessage(id, text), nil
}

// SanitizeText drops invalid UTF-8 sequences.
func SanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// TruncateText cuts text to MaxMessageLength UTF-16 code units, ending with
// "..." when anything was removed. Runes outside the Basic Multilingual Plane
// count twice.
func TruncateText(text string) string {
	if utf16Len(text) <= MaxMessageLength {
		return text
	}
	const suffix = "..."
	limit := MaxMessageLength - len(suffix)
	n := 0
	for i, r := range text {
		w := utf16Width(r)
		if n+w > limit {
			return text[:i] + suffix
		}
		n += w
	}
	return text
}

func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		n += utf16Width(r)
	}
	return n
}

func utf16Width(r rune) int {
	// Supplementary-plane runes are encoded as a surrogate pair.
	if r > 0xFFFF {
		return 2
	}
	return 1
}
