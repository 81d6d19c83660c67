// Package ratelimit enforces a fixed-window message quota per conversation.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/cache"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

// Defaults match the platform's documented quota of 10 messages per minute.
const (
	DefaultThreshold = 10
	DefaultWindow    = 60 * time.Second
)

// Config holds limiter settings.
type Config struct {
	KeyPrefix string
	Threshold int
	Window    time.Duration
}

// Limiter is a fixed-window counter keyed by conversation. A burst straddling a
// window boundary can reach twice the threshold; state stays O(1) per
// conversation and expires on its own.
type Limiter struct {
	store     cache.Store
	keyPrefix string
	threshold int64
	window    time.Duration
	logger    *logger.Logger
}

// New creates a limiter over store.
func New(store cache.Store, cfg Config, log *logger.Logger) *Limiter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{
		store:     store,
		keyPrefix: cfg.KeyPrefix,
		threshold: int64(cfg.Threshold),
		window:    cfg.Window,
		logger:    log.Named("ratelimit"),
	}
}

// Key returns the counter key for a conversation.
func (l *Limiter) Key(conversationID string) string {
	return l.keyPrefix + "ratelimit:" + conversationID
}

// Allow counts one message for conversationID and reports whether it is within
// quota. If the cache is unreachable the message is allowed.
func (l *Limiter) Allow(ctx context.Context, conversationID string) bool {
	count, err := l.store.IncrWindow(ctx, l.Key(conversationID), l.window)
	if err != nil {
		l.logger.Warn("rate limiter cache unavailable, failing open",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		metrics.RateLimitDecisions.WithLabelValues("fail_open").Inc()
		return true
	}

	if count > l.threshold {
		l.logger.Info("conversation over quota",
			zap.String("conversation_id", conversationID),
			zap.Int64("count", count),
			zap.Int64("threshold", l.threshold),
		)
		metrics.RateLimitDecisions.WithLabelValues("rejected").Inc()
		return false
	}

	metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
	return true
}
