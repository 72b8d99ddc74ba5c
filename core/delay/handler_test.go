package delay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flipnotify/core/model"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func TestHandler_StaticSource(t *testing.T) {
	src := NewStaticSource(StaticConfig{
		Penalties:  map[string]time.Duration{"u1": 800 * time.Millisecond},
		LikelyBots: []string{"u1"},
		AntiAfk:    []string{"u1"},
	})
	clock := &stepClock{now: time.Unix(1_700_000_000, 0)}
	h := NewHandler(src, model.AccountInfo{UserID: "u1"}, 200*time.Millisecond, clock)
	sum, err := h.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.AntiAfk)
	assert.False(t, sum.MacroWarning)
	assert.True(t, h.IsAutomatedClient(nil))
	assert.Equal(t, 800*time.Millisecond, h.CurrentPenalty())

	at, err := h.AwaitSendTime(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1_700_000_001, 0), at)
}

type failingSource struct{}

func (failingSource) Summary(context.Context, model.AccountInfo) (model.DelaySummary, error) {
	return model.DelaySummary{}, errors.New("unavailable")
}

func TestHandler_UpdateKeepsLastSummary(t *testing.T) {
	h := NewHandler(failingSource{}, model.AccountInfo{UserID: "u2"}, 0, nil)
	_, err := h.Update(context.Background())
	assert.Error(t, err)
	assert.False(t, h.IsAutomatedClient(nil))
	assert.Zero(t, h.CurrentPenalty())
}

func TestHandler_AwaitHonoursContext(t *testing.T) {
	h := NewHandler(nil, model.AccountInfo{}, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.AwaitSendTime(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
