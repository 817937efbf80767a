package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string    `json:"name"`
	Betas []float64 `json:"betas"`
}

func TestMemoryCache_RoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := payload{Name: "ma_5_20", Betas: []float64{0.5, -1.25}}
	require.NoError(t, mc.Set(ctx, "report:1", in, time.Minute))

	var out payload
	require.NoError(t, mc.Get(ctx, "report:1", &out))
	assert.Equal(t, in, out)

	var raw string
	require.NoError(t, mc.Get(ctx, "report:1", &raw))
	assert.Contains(t, raw, `"ma_5_20"`)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "absent", &s), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	ok, err = mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	now = now.Add(time.Second)

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	now = now.Add(time.Second)

	require.NoError(t, mc.Set(ctx, "c", "3", 0))
	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &s))
	assert.Equal(t, "1", s)
}

func TestMemoryCache_Lock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock:BTCUSDT", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock:BTCUSDT", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:BTCUSDT"))
	ok, err = mc.TryLock(ctx, "lock:BTCUSDT", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(time.Millisecond))
	assert.NoError(t, mc.Close())
	assert.NoError(t, mc.Close())
}

func TestLayeredCache_BackfillsFromBackend(t *testing.T) {
	backend := NewMemoryCache()
	lc := NewLayeredCache(backend, WithLayeredMemory(10, time.Minute))
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "report:x", payload{Name: "x"}, 0))
	assert.Equal(t, 0, lc.mem.Len())

	var out payload
	require.NoError(t, lc.Get(ctx, "report:x", &out))
	assert.Equal(t, "x", out.Name)
	assert.Equal(t, 1, lc.mem.Len())

	require.NoError(t, backend.Delete(ctx, "report:x"))
	out = payload{}
	require.NoError(t, lc.Get(ctx, "report:x", &out), "served from L1")
	assert.Equal(t, "x", out.Name)
}

func TestLayeredCache_WriteThroughAndDelete(t *testing.T) {
	backend := NewMemoryCache()
	lc := NewLayeredCache(backend)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, lc.Set(ctx, "k", payload{Name: "y"}, time.Hour))
	var out payload
	require.NoError(t, backend.Get(ctx, "k", &out))
	assert.Equal(t, "y", out.Name)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &out), ErrCacheMiss)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "report", GenerateKey("report"))
	assert.Equal(t, "lock:build:BTCUSDT:1h", GenerateKey("lock:build", "BTCUSDT", "1h"))
	assert.Len(t, HashKey([]byte("abc")), 24)
	assert.Equal(t, HashKey([]byte("abc")), HashKey([]byte("abc")))
}
