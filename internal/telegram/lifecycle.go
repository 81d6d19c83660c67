package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// AllowedUpdates are the update kinds the bot subscribes to.
var AllowedUpdates = []string{"message", "callback_query"}

// RegisterWebhook points Telegram at url. When secret is set Telegram echoes it
// in SecretHeader on every delivery.
func RegisterWebhook(bot BotAPI, url, secret string) error {
	params := tgbotapi.Params{}
	params["url"] = url
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", AllowedUpdates); err != nil {
		return fmt.Errorf("encode allowed updates: %w", err)
	}

	if _, err := bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes any registered webhook so long polling can start.
func DeleteWebhook(bot BotAPI) error {
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// UpdateHandler processes one update.
type UpdateHandler func(ctx context.Context, update *tgbotapi.Update)

// Poller long-polls getUpdates and hands each update to a handler.
type Poller struct {
	bot     BotAPI
	timeout int
	logger  *logger.Logger
}

// NewPoller creates a poller that long-polls for PollTimeout.
func NewPoller(bot BotAPI, log *logger.Logger) *Poller {
	return &Poller{bot: bot, timeout: int(PollTimeout / time.Second), logger: log.Named("poller")}
}

// Run blocks until ctx is done. Updates are handled one at a time in arrival
// order.
func (p *Poller) Run(ctx context.Context, handle UpdateHandler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	cfg.AllowedUpdates = AllowedUpdates
	updates := p.bot.GetUpdatesChan(cfg)

	p.logger.Info("polling for updates")
	for {
		select {
		case <-ctx.Done():
			p.bot.StopReceivingUpdates()
			// The library goroutine exits only after its in-flight poll is read.
			go func() {
				for range updates {
				}
			}()
			p.logger.Info("polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				p.logger.Warn("updates channel closed")
				return
			}
			p.logger.Debug("update received", zap.Int("update_id", update.UpdateID))
			handle(ctx, &update)
		}
	}
}
