package session

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flipnotify/core/events"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/internal/eventbus"
)

func TestHub_DeliverClonesPerSession(t *testing.T) {
	clock := &fakeClock{now: epoch}
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	hub := NewHub(nil, bus, clock)

	deps := testDeps(clock)
	deps.Snapshots = hub
	s1, c1 := newTestSession(t, deps, nil)
	s2, c2 := newTestSession(t, deps, nil)
	hub.Add(s1)
	hub.Add(s2)
	assert.Equal(t, 2.0, testutil.ToFloat64(activeSessions))

	batch := []*model.CandidateEvent{candidate(1, model.FinderSniper)}
	hub.Deliver(batch)
	hub.Wait()

	require.Len(t, c1.Flips(), 1)
	require.Len(t, c2.Flips(), 1)
	assert.NotSame(t, c1.Flips()[0].Event, c2.Flips()[0].Event)
	assert.Nil(t, batch[0].Props, "the upstream batch is never annotated")
	_, ok := c1.Flips()[0].Event.Props.Get("dl")
	assert.True(t, ok)

	ev := <-sub
	se, ok := ev.(events.SessionEvent)
	require.True(t, ok)
	assert.Equal(t, "added", se.Action)

	hub.Remove(s1.ID())
	_, found := hub.Get(s1.ID())
	assert.False(t, found)
	assert.Equal(t, 1.0, testutil.ToFloat64(activeSessions))
}

func TestHub_HouseKeepingRecordsSnapshots(t *testing.T) {
	clock := &fakeClock{now: epoch}
	hub := NewHub(nil, nil, clock)
	s, _ := newTestSession(t, testDeps(clock), nil)
	hub.Add(s)

	for i := 0; i < snapshotCap+3; i++ {
		hub.HouseKeeping()
	}
	snaps := hub.Snapshots()
	require.Len(t, snaps, snapshotCap)
	assert.True(t, strings.HasPrefix(snaps[0].State, "sessions=1 "))

	hub.Close()
	assert.Equal(t, 0, hub.Len())
}
