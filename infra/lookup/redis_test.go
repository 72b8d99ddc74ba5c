package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data  map[string]string
	err   error
	calls int
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.calls++
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisLookup_Reads(t *testing.T) {
	fr := &fakeRedis{data: map[string]string{
		"flip:lbin:HYPERION": "750000000",
		"flip:seller:abc":    "Technoblade",
		"flip:lbin:BROKEN":   "n/a",
	}}
	l := newLookup(fr, Config{})
	ctx := context.Background()

	lbin, err := l.LowestBin(ctx, "HYPERION")
	require.NoError(t, err)
	assert.Equal(t, int64(750000000), lbin)

	name, err := l.SellerName(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "Technoblade", name)

	missing, err := l.LowestBin(ctx, "DIRT")
	require.NoError(t, err)
	assert.Zero(t, missing)

	_, err = l.LowestBin(ctx, "BROKEN")
	assert.Error(t, err)
}

func TestRedisLookup_CachesUntilExpiry(t *testing.T) {
	fr := &fakeRedis{data: map[string]string{"p:lbin:X": "5"}}
	l := newLookup(fr, Config{Prefix: "p", CacheTTL: time.Second})
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.LowestBin(ctx, "X")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fr.calls)

	now = now.Add(2 * time.Second)
	l.Prune()
	assert.Empty(t, l.cache)
	_, err := l.LowestBin(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 2, fr.calls)
}

func TestRedisLookup_Error(t *testing.T) {
	l := newLookup(&fakeRedis{err: errors.New("down")}, Config{})
	_, err := l.SellerName(context.Background(), "abc")
	assert.Error(t, err)
	assert.NoError(t, l.Close())
}
