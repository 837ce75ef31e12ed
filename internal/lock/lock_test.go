package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ExclusivePerKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	unlock, err := m.TryLock(ctx, "user:1")
	require.NoError(t, err)

	_, err = m.TryLock(ctx, "user:1")
	assert.ErrorIs(t, err, ErrHeld)

	other, err := m.TryLock(ctx, "user:2")
	require.NoError(t, err, "different keys must not block each other")
	other()

	unlock()
	unlock() // second call is a no-op

	again, err := m.TryLock(ctx, "user:1")
	require.NoError(t, err)
	again()
}

func TestMemory_ConcurrentCallersOneWinner(t *testing.T) {
	m := NewMemory()
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := m.TryLock(context.Background(), "user:1"); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, ErrHeld) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

// TestRedis_TryLock runs against a real server when JOBLETTER_TEST_REDIS_URL is set.
func TestRedis_TryLock(t *testing.T) {
	url := os.Getenv("JOBLETTER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("JOBLETTER_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	r := NewRedis(client, "jobletter-test:", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	unlock, err := r.TryLock(ctx, "user:1")
	require.NoError(t, err)

	_, err = r.TryLock(ctx, "user:1")
	assert.ErrorIs(t, err, ErrHeld)

	unlock()
	again, err := r.TryLock(ctx, "user:1")
	require.NoError(t, err)
	again()
}
