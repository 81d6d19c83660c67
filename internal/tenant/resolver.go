// Package tenant maps conversations to tenant configurations.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/backend"
	"github.com/capitalize-ai/chat-gateway/internal/cache"
	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

// DefaultTTL is how long a resolved configuration is served from cache.
const DefaultTTL = 300 * time.Second

// Backend is the subset of the backend client the resolver needs.
type Backend interface {
	GetChatConfig(ctx context.Context, chatID model.ChatID) (*model.TenantConfig, error)
	LinkChat(ctx context.Context, chatID model.ChatID, sender model.Sender) (*model.TenantConfig, error)
}

// Config holds resolver settings.
type Config struct {
	KeyPrefix string
	TTL       time.Duration
}

// Resolver is a cache-aside lookup in front of the backend. Only resolved
// configurations are cached; an unresolved conversation is asked about again on
// its next message.
type Resolver struct {
	store     cache.Store
	backend   Backend
	keyPrefix string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewResolver creates a resolver.
func NewResolver(store cache.Store, backend Backend, cfg Config, log *logger.Logger) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Resolver{
		store:     store,
		backend:   backend,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		logger:    log.Named("tenant"),
	}
}

// Key returns the cache key for a conversation's configuration.
func (r *Resolver) Key(chatID model.ChatID) string {
	return r.keyPrefix + "chat:" + chatID.String() + ":config"
}

// Resolve returns the tenant configuration for chatID, linking the conversation
// on first contact. It returns nil when no tenant can be resolved.
func (r *Resolver) Resolve(ctx context.Context, chatID model.ChatID, sender model.Sender) *model.TenantConfig {
	if cfg := r.cached(ctx, chatID); cfg != nil {
		metrics.TenantResolutions.WithLabelValues("cache").Inc()
		return cfg
	}

	if cfg := r.fetch(ctx, chatID); cfg != nil {
		metrics.TenantResolutions.WithLabelValues("backend").Inc()
		r.remember(ctx, chatID, cfg)
		return cfg
	}

	cfg, err := r.backend.LinkChat(ctx, chatID, sender)
	if err != nil {
		r.logger.Warn("failed to link chat",
			zap.String("conversation_id", chatID.String()),
			zap.Error(err),
		)
		metrics.TenantResolutions.WithLabelValues("unresolved").Inc()
		return nil
	}

	r.logger.Info("chat linked",
		zap.String("conversation_id", chatID.String()),
		zap.String("tenant_id", cfg.TenantID),
	)
	metrics.TenantResolutions.WithLabelValues("linked").Inc()
	r.remember(ctx, chatID, cfg)
	return cfg
}

// Lookup is Resolve without the linking step. Commands that only report on a
// conversation use it so that they never create a link.
func (r *Resolver) Lookup(ctx context.Context, chatID model.ChatID) *model.TenantConfig {
	if cfg := r.cached(ctx, chatID); cfg != nil {
		metrics.TenantResolutions.WithLabelValues("cache").Inc()
		return cfg
	}
	if cfg := r.fetch(ctx, chatID); cfg != nil {
		metrics.TenantResolutions.WithLabelValues("backend").Inc()
		r.remember(ctx, chatID, cfg)
		return cfg
	}
	metrics.TenantResolutions.WithLabelValues("unresolved").Inc()
	return nil
}

func (r *Resolver) cached(ctx context.Context, chatID model.ChatID) *model.TenantConfig {
	data, err := r.store.Get(ctx, r.Key(chatID))
	if errors.Is(err, cache.ErrMiss) {
		metrics.TenantCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	if err != nil {
		r.logger.Warn("tenant cache read failed",
			zap.String("conversation_id", chatID.String()),
			zap.Error(err),
		)
		metrics.TenantCacheLookups.WithLabelValues("error").Inc()
		return nil
	}

	var cfg model.TenantConfig
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.TenantID == "" {
		r.logger.Warn("discarding unreadable tenant cache entry",
			zap.String("conversation_id", chatID.String()),
			zap.Error(err),
		)
		metrics.TenantCacheLookups.WithLabelValues("error").Inc()
		return nil
	}
	metrics.TenantCacheLookups.WithLabelValues("hit").Inc()
	return &cfg
}

func (r *Resolver) fetch(ctx context.Context, chatID model.ChatID) *model.TenantConfig {
	cfg, err := r.backend.GetChatConfig(ctx, chatID)
	if err != nil {
		lvl := r.logger.Debug
		if !errors.Is(err, backend.ErrNotFound) {
			lvl = r.logger.Warn
		}
		lvl("no tenant config from backend",
			zap.String("conversation_id", chatID.String()),
			zap.Error(err),
		)
		return nil
	}
	return cfg
}

func (r *Resolver) remember(ctx context.Context, chatID model.ChatID, cfg *model.TenantConfig) {
	data, err := json.Marshal(cfg)
	if err != nil {
		r.logger.Error("failed to encode tenant config", zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, r.Key(chatID), data, r.ttl); err != nil {
		r.logger.Warn("tenant cache write failed",
			zap.String("conversation_id", chatID.String()),
			zap.Error(err),
		)
	}
}
