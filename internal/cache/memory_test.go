package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStoreExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore()
	store.SetClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 10*time.Second))
	val, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(val))

	clock.Advance(10 * time.Second)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreIncrWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore()
	store.SetClock(clock.Now)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := store.IncrWindow(ctx, "rl", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		clock.Advance(10 * time.Second)
	}
	assert.Equal(t, 30*time.Second, store.TTL("rl"))

	clock.Advance(30 * time.Second)
	n, err := store.IncrWindow(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("abc"), 0))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	val[0] = 'z'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStoreIncrWindowConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrWindow(ctx, "rl", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	val, err := store.Get(ctx, "rl")
	require.NoError(t, err)
	assert.Equal(t, "50", string(val))
}

// readModifyWrite is the counter a gateway would get by composing Get and Set
// itself instead of relying on IncrWindow.
func readModifyWrite(ctx context.Context, s Store, key string, afterRead func()) error {
	var n int64
	val, err := s.Get(ctx, key)
	switch {
	case err == nil:
		n, err = strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return err
		}
	case !errors.Is(err, ErrMiss):
		return err
	}
	afterRead()
	return s.Set(ctx, key, []byte(strconv.FormatInt(n+1, 10)), time.Minute)
}

func TestReadModifyWriteCounterUndercounts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 50
	var (
		reads sync.WaitGroup
		done  sync.WaitGroup
	)
	reads.Add(workers)
	for i := 0; i < workers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			err := readModifyWrite(ctx, store, "rl", func() {
				// Every worker reads before any worker writes.
				reads.Done()
				reads.Wait()
			})
			assert.NoError(t, err)
		}()
	}
	done.Wait()

	val, err := store.Get(ctx, "rl")
	require.NoError(t, err)
	n, err := strconv.ParseInt(string(val), 10, 64)
	require.NoError(t, err)
	assert.Less(t, n, int64(workers), "interleaved read-modify-write loses increments")
	assert.Equal(t, int64(1), n)
}
