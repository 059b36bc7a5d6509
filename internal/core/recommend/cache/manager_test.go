package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-reduction-api/internal/infrastructure/config"
	"waste-reduction-api/internal/pkg/common"
)

func TestMain(m *testing.M) {
	if err := common.InitLogger("error"); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func newTestManager(t *testing.T, maxSize int, ttl time.Duration) *Manager {
	t.Helper()
	m := NewManager(&config.CacheConfig{
		Enabled:         true,
		Backend:         "memory",
		MaxSize:         maxSize,
		TTL:             ttl,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerSetGet(t *testing.T) {
	m := newTestManager(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", `{"a":1}`))

	value, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, value)
}

func TestManagerMiss(t *testing.T) {
	m := newTestManager(t, 10, time.Minute)

	_, err := m.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestManagerTTLExpiry(t *testing.T) {
	m := newTestManager(t, 10, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1"))
	time.Sleep(25 * time.Millisecond)

	_, err := m.Get(ctx, "k1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestManagerFlush(t *testing.T) {
	m := newTestManager(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1"))
	require.NoError(t, m.Set(ctx, "k2", "v2"))
	require.NoError(t, m.Flush(ctx))

	_, err := m.Get(ctx, "k1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
	assert.Equal(t, 0, m.GetStats()["size"])
}

func TestManagerLRUEviction(t *testing.T) {
	m := newTestManager(t, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "hot", "v1"))
	require.NoError(t, m.Set(ctx, "cold", "v2"))

	// 提高 hot 的存取次數，讓 cold 成為淘汰對象
	_, err := m.Get(ctx, "hot")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "new", "v3"))

	_, err = m.Get(ctx, "cold")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
	_, err = m.Get(ctx, "hot")
	assert.NoError(t, err)
}

func TestManagerStats(t *testing.T) {
	m := newTestManager(t, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1"))
	_, _ = m.Get(ctx, "k1")
	_, _ = m.Get(ctx, "nope")

	stats := m.GetStats()
	assert.Equal(t, "memory", stats["backend"])
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
	assert.Equal(t, 0.5, stats["hit_ratio"])
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("hybrid", "U1", "10")
	b := Key("hybrid", "U1", "10")
	c := Key("hybrid", "U2", "10")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "rec:hybrid:")
}
