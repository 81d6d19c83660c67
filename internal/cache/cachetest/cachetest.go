// Package cachetest provides cache.Store doubles for tests.
package cachetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/capitalize-ai/chat-gateway/internal/cache"
)

// ErrUnavailable is returned by every Unavailable operation.
var ErrUnavailable = errors.New("cachetest: store unavailable")

// Unavailable is a store whose every call fails, as if the cache were down.
type Unavailable struct{}

func (Unavailable) Get(context.Context, string) ([]byte, error) { return nil, ErrUnavailable }

func (Unavailable) Set(context.Context, string, []byte, time.Duration) error {
	return ErrUnavailable
}

func (Unavailable) IncrWindow(context.Context, string, time.Duration) (int64, error) {
	return 0, ErrUnavailable
}

func (Unavailable) Ping(context.Context) error { return ErrUnavailable }
func (Unavailable) Close() error               { return nil }

// Recorder wraps a store and counts calls per operation.
type Recorder struct {
	cache.Store

	mu    sync.Mutex
	gets  int
	sets  int
	incrs int
}

// NewRecorder wraps store.
func NewRecorder(store cache.Store) *Recorder {
	return &Recorder{Store: store}
}

func (r *Recorder) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	return r.Store.Get(ctx, key)
}

func (r *Recorder) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.mu.Lock()
	r.sets++
	r.mu.Unlock()
	return r.Store.Set(ctx, key, value, ttl)
}

func (r *Recorder) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	r.mu.Lock()
	r.incrs++
	r.mu.Unlock()
	return r.Store.IncrWindow(ctx, key, window)
}

// Counts returns the number of Get, Set and IncrWindow calls seen so far.
func (r *Recorder) Counts() (gets, sets, incrs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets, r.sets, r.incrs
}
