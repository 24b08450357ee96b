package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/models"
)

func setupStore(t *testing.T, limit int, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, limit, ttl, logger.NewTestLogger(t)), mr
}

func TestStore_AppendAndRecent(t *testing.T) {
	store, _ := setupStore(t, 10, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "u-1", "s-1",
		models.Message{Role: models.RoleUser, Content: "How do I reset my password?"},
		models.Message{Role: models.RoleAssistant, Content: "Use the reset link."},
	))

	msgs, err := store.Recent(ctx, "u-1", "s-1", 5)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "Use the reset link.", msgs[1].Content)
	assert.False(t, msgs[0].CreatedAt.IsZero())

	other, err := store.Recent(ctx, "u-1", "s-2", 5)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_TrimsToLimit(t *testing.T) {
	store, _ := setupStore(t, 4, 0)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, store.Append(ctx, "u", "s", models.Message{Role: models.RoleUser, Content: fmt.Sprintf("m%d", i)}))
	}

	msgs, err := store.Recent(ctx, "u", "s", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m5", msgs[3].Content)

	last, err := store.Recent(ctx, "u", "s", 2)
	require.NoError(t, err)
	assert.Equal(t, "m4", last[0].Content)
}

func TestStore_TTL(t *testing.T) {
	store, mr := setupStore(t, 10, time.Hour)
	require.NoError(t, store.Append(context.Background(), "u", "s", models.Message{Role: models.RoleUser, Content: "hi"}))
	assert.Equal(t, time.Hour, mr.TTL(conversationKey("u", "s")))
}

func TestStore_SkipsCorruptEntries(t *testing.T) {
	store, mr := setupStore(t, 10, 0)
	_, err := mr.Push(conversationKey("u", "s"), "{not json", `{"role":"user","content":"ok"}`)
	require.NoError(t, err)

	msgs, err := store.Recent(context.Background(), "u", "s", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ok", msgs[0].Content)
}

func TestStore_Clear(t *testing.T) {
	store, mr := setupStore(t, 10, 0)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "u", "s", models.Message{Role: models.RoleUser, Content: "hi"}))
	require.NoError(t, store.Clear(ctx, "u", "s"))
	assert.False(t, mr.Exists(conversationKey("u", "s")))
}

func TestStore_UnavailableRedis(t *testing.T) {
	store, mr := setupStore(t, 10, 0)
	mr.Close()

	err := store.Append(context.Background(), "u", "s", models.Message{Role: models.RoleUser, Content: "hi"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseQueryFailed))

	_, err = store.Recent(context.Background(), "u", "s", 3)
	assert.Error(t, err)
}
