// Package telegram adapts the Telegram Bot API to the gateway's model.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// SecretHeader carries the webhook secret on every Telegram delivery.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// PollTimeout is the long-poll duration requested from getUpdates. A bot that
// polls needs an HTTP client timeout longer than this.
const PollTimeout = 30 * time.Second

// BotAPI is the part of *tgbotapi.BotAPI the gateway uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewBot authenticates with the bot token against the public Bot API. Every
// HTTP call the bot makes is capped at timeout.
func NewBot(token string, timeout time.Duration, log *logger.Logger) (*tgbotapi.BotAPI, error) {
	return NewBotWithEndpoint(token, tgbotapi.APIEndpoint, timeout, log)
}

// NewBotWithEndpoint is NewBot for a self-hosted Bot API server. endpoint is a
// format string taking the token and the method name.
func NewBotWithEndpoint(token, endpoint string, timeout time.Duration, log *logger.Logger) (*tgbotapi.BotAPI, error) {
	log = log.Named("tgbotapi")
	if err := tgbotapi.SetLogger(&zapBotLogger{log: log}); err != nil {
		log.Debug("library logger not installed", zap.Error(err))
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return bot, nil
}

type zapBotLogger struct {
	log *logger.Logger
}

func (l *zapBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *zapBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

// call runs fn until it returns, ctx is done or timeout elapses, whichever
// comes first. tgbotapi calls take no context, so an abandoned fn keeps running
// in the background until the bot's HTTP client timeout ends it.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
