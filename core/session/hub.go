package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/flipnotify/core/events"
	"github.com/kilianp07/flipnotify/core/flip"
	"github.com/kilianp07/flipnotify/core/logger"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/internal/eventbus"
)

const snapshotCap = 10

// Hub tracks the connected sessions and fans batches out to them.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	snapshots *flip.Queue[model.Snapshot]
	clock     flip.Clock
	log       logger.Logger
	bus       eventbus.Publisher
	inflight  sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger, bus eventbus.Publisher, clock flip.Clock) *Hub {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if clock == nil {
		clock = flip.RealClock()
	}
	return &Hub{
		sessions:  make(map[string]*Session),
		snapshots: flip.NewQueue[model.Snapshot](),
		clock:     clock,
		log:       logger.OrNop(log),
		bus:       bus,
	}
}

// Add registers s. The session removes itself when it closes.
func (h *Hub) Add(s *Session) {
	s.mu.Lock()
	s.hub = h
	s.mu.Unlock()
	h.mu.Lock()
	h.sessions[s.id] = s
	n := len(h.sessions)
	h.mu.Unlock()
	activeSessions.Set(float64(n))
	h.bus.Publish(events.SessionEvent{SessionID: s.id, AccountID: s.account.UserID, Action: "added"})
}

// Remove drops the session with id. Unknown ids are ignored.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	n := len(h.sessions)
	h.mu.Unlock()
	if !ok {
		return
	}
	activeSessions.Set(float64(n))
	h.bus.Publish(events.SessionEvent{SessionID: id, AccountID: s.account.UserID, Action: "removed"})
}

// Get returns the session with id.
func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// List returns the sessions ordered by id.
func (h *Hub) List() []*Session {
	h.mu.RLock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Deliver hands a copy of batch to every session, each on its own goroutine.
func (h *Hub) Deliver(batch []*model.CandidateEvent) {
	for _, s := range h.List() {
		owned := make([]*model.CandidateEvent, 0, len(batch))
		for _, e := range batch {
			owned = append(owned, e.Clone())
		}
		h.inflight.Add(1)
		go func(s *Session) {
			defer h.inflight.Done()
			s.Deliver(owned)
		}(s)
	}
}

// Wait blocks until delivered batches and their background tasks finished.
func (h *Hub) Wait() {
	h.inflight.Wait()
	for _, s := range h.List() {
		s.proc.Wait()
	}
}

// HouseKeeping runs the per-minute tick of every session and records a
// snapshot of the hub state.
func (h *Hub) HouseKeeping() {
	var beds, blocked, dedup int
	sessions := h.List()
	for _, s := range sessions {
		s.HouseKeeping()
		beds += s.proc.WaitingBeds()
		blocked += len(s.proc.Blocked())
		dedup += s.proc.DedupSize()
	}
	h.snapshots.Push(model.Snapshot{
		Time:  h.clock.Now(),
		State: fmt.Sprintf("sessions=%d waitingBeds=%d blocked=%d dedup=%d", len(sessions), beds, blocked, dedup),
	})
	h.snapshots.TrimTo(snapshotCap)
}

// Snapshots implements flip.SnapshotSource.
func (h *Hub) Snapshots() []model.Snapshot { return h.snapshots.Items() }

// Close closes every session.
func (h *Hub) Close() {
	for _, s := range h.List() {
		s.Close()
	}
}

func summaryJSON(s model.DelaySummary) string {
	b, err := json.Marshal(s)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
