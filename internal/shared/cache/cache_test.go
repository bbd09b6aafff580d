package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type overview struct {
	Total  int    `json:"total"`
	Status string `json:"status"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "crm"), mr
}

func TestRemember_MissThenHit(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) (overview, error) {
		loads++
		return overview{Total: 7, Status: "ok"}, nil
	}

	v, err := Remember(ctx, c, "kpi:overall", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, overview{Total: 7, Status: "ok"}, v)
	assert.Equal(t, 1, loads)

	raw, err := mr.Get("crm:kpi:overall")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":7,"status":"ok"}`, raw)
	assert.Equal(t, time.Minute, mr.TTL("crm:kpi:overall"))

	v, err = Remember(ctx, c, "kpi:overall", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 7, v.Total)
	assert.Equal(t, 1, loads)

	mr.FastForward(2 * time.Minute)
	_, err = Remember(ctx, c, "kpi:overall", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestRemember_LoadErrorIsNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("db down")

	_, err := Remember(context.Background(), c, "kpi:overall", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("crm:kpi:overall"))
}

func TestRemember_CorruptEntryFallsBackToLoad(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("crm:dashboard:overview", "{not json"))

	v, err := Remember(context.Background(), c, "dashboard:overview", time.Minute, func(context.Context) (overview, error) {
		return overview{Total: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Total)

	raw, err := mr.Get("crm:dashboard:overview")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":3,"status":""}`, raw)
}

func TestRemember_RedisDownStillLoads(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	loads := 0
	for i := 0; i < 2; i++ {
		v, err := Remember(context.Background(), c, "kpi:overall", time.Minute, func(context.Context) (int, error) {
			loads++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 2, loads)

	_, err := c.Get(context.Background(), "kpi:overall", new(int))
	assert.Error(t, err)
}

func TestInvalidatePrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	for _, k := range []string{"kpi:overall", "kpi:top:customer_id", "dashboard:overview"} {
		require.NoError(t, c.Set(ctx, k, 1, time.Minute))
	}
	require.NoError(t, mr.Set("other:kpi:overall", "1"))

	require.NoError(t, c.InvalidatePrefix(ctx, "kpi:"))
	assert.False(t, mr.Exists("crm:kpi:overall"))
	assert.False(t, mr.Exists("crm:kpi:top:customer_id"))
	assert.True(t, mr.Exists("crm:dashboard:overview"))
	assert.True(t, mr.Exists("other:kpi:overall"))

	// 无匹配键
	require.NoError(t, c.InvalidatePrefix(ctx, "kpi:"))
	require.NoError(t, c.InvalidatePrefix(ctx, "missing:"))
	assert.True(t, mr.Exists("crm:dashboard:overview"))
}

func TestCache_NilClientPassesThrough(t *testing.T) {
	ctx := context.Background()
	for name, c := range map[string]*Cache{"nil client": New(nil, "crm"), "nil cache": nil} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.Enabled())

			hit, err := c.Get(ctx, "kpi:overall", new(int))
			assert.NoError(t, err)
			assert.False(t, hit)
			assert.NoError(t, c.Set(ctx, "kpi:overall", 1, time.Minute))
			assert.NoError(t, c.InvalidatePrefix(ctx, "kpi:"))

			loads := 0
			for i := 0; i < 2; i++ {
				v, err := Remember(ctx, c, "kpi:overall", time.Minute, func(context.Context) (int, error) {
					loads++
					return 5, nil
				})
				require.NoError(t, err)
				assert.Equal(t, 5, v)
			}
			assert.Equal(t, 2, loads)
		})
	}
}
