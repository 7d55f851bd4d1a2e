package idempotency

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestMemoryStore_SeenAndMark(t *testing.T) {
	store := NewMemoryStore(DefaultMemoryConfig())
	defer store.Stop()

	ctx := context.Background()

	// 未标记的请求应为未见
	seen, err := store.Seen(ctx, "req-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Mark(ctx, "req-1"))

	seen, err = store.Seen(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// 其他请求不受影响
	seen, err = store.Seen(ctx, "req-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryStore_RepeatedMark(t *testing.T) {
	store := NewMemoryStore(DefaultMemoryConfig())
	defer store.Stop()

	ctx := context.Background()

	// 重复标记不报错
	require.NoError(t, store.Mark(ctx, "req-1"))
	require.NoError(t, store.Mark(ctx, "req-1"))
	assert.Equal(t, 1, store.Size())
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{
		TTL:             20 * time.Millisecond,
		CleanupInterval: time.Hour, // 不依赖后台清理
	})
	defer store.Stop()

	ctx := context.Background()
	require.NoError(t, store.Mark(ctx, "req-1"))

	seen, err := store.Seen(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, seen)

	time.Sleep(40 * time.Millisecond)

	// 保留窗口过后记录失效，允许重新处理
	seen, err = store.Seen(ctx, "req-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryStore_MaxEntries(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{MaxEntries: 2, CleanupInterval: time.Hour})
	defer store.Stop()

	ctx := context.Background()
	require.NoError(t, store.Mark(ctx, "req-1"))
	require.NoError(t, store.Mark(ctx, "req-2"))
	require.NoError(t, store.Mark(ctx, "req-3"))

	// 超出上限时淘汰最旧记录
	assert.Equal(t, 2, store.Size())
	seen, _ := store.Seen(ctx, "req-1")
	assert.False(t, seen)
	seen, _ = store.Seen(ctx, "req-3")
	assert.True(t, seen)
}

func TestNewRedisStore_Defaults(t *testing.T) {
	store := NewRedisStore(RedisConfig{Addr: "localhost:6379"})
	defer store.Close()

	assert.Equal(t, "taskmq:idempotency:", store.keyPrefix)
	assert.Equal(t, time.Hour, store.ttl)
	assert.True(t, store.ownClient)
	assert.Equal(t, "taskmq:idempotency:req-1", store.key("req-1"))
}

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLStore(SQLConfig{DB: db})
	require.NoError(t, store.EnsureTable(context.Background()))
	return store
}

func TestSQLStore_SeenAndMark(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "req-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Mark(ctx, "req-1"))

	seen, err = store.Seen(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSQLStore_MarkIsIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "req-1"))
	require.NoError(t, store.Mark(ctx, "req-1"))

	seen, err := store.Seen(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSQLStore_Purge(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "old"))
	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.Mark(ctx, "new"))

	n, err := store.Purge(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	seen, _ := store.Seen(ctx, "old")
	assert.False(t, seen)
	seen, _ = store.Seen(ctx, "new")
	assert.True(t, seen)
}
