package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetMissingThread(t *testing.T) {
	store := NewMemoryStore()

	threadID, err := store.GetThread(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, threadID)
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveThread(ctx, "u1", "thread-1"))

	threadID, err := store.GetThread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "thread-1", threadID)
}

func TestMemoryStoreNeverReassigns(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveThread(ctx, "u1", "thread-1"))
	require.NoError(t, store.SaveThread(ctx, "u1", "thread-2"))

	threadID, err := store.GetThread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "thread-1", threadID)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n%10)
			_ = store.SaveThread(ctx, userID, fmt.Sprintf("thread-%d", n%10))
			_, _ = store.GetThread(ctx, userID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		threadID, err := store.GetThread(ctx, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		assert.NotEmpty(t, threadID)
	}
}
