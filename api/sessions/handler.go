// Package sessions exposes connected sessions to operators:
//
//	GET /api/sessions
//	GET /api/sessions/{id}/blocked
//	GET /api/sessions/{id}/recent
package sessions

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/flipnotify/api"
	"github.com/kilianp07/flipnotify/core/flip"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/session"
)

// Summary is one row of the session listing.
type Summary struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Tier        string             `json:"tier"`
	Sent        int64              `json:"sent"`
	Blocked     int64              `json:"blocked_last_minute"`
	DedupSize   int                `json:"dedup_size"`
	WaitingBeds int                `json:"waiting_beds"`
	NextPing    time.Time          `json:"next_ping"`
	Delay       model.DelaySummary `json:"delay"`
}

// Recent is the payload of the recent endpoint.
type Recent struct {
	Events  []*model.CandidateEvent `json:"events"`
	Latency flip.LatencySummary     `json:"latency"`
}

// Routes mounts the session endpoints on r behind bearer auth.
func Routes(r chi.Router, hub *session.Hub, token string) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(api.BearerAuth(token))
		r.Get("/", list(hub))
		r.Get("/{id}/blocked", withSession(hub, func(w http.ResponseWriter, s *session.Session) {
			blocked := s.Blocked()
			if blocked == nil {
				blocked = []flip.BlockedFlip{}
			}
			api.WriteJSON(w, blocked)
		}))
		r.Get("/{id}/recent", withSession(hub, func(w http.ResponseWriter, s *session.Session) {
			events := s.Recent()
			if events == nil {
				events = []*model.CandidateEvent{}
			}
			api.WriteJSON(w, Recent{Events: events, Latency: s.Processor().LatencySummary()})
		}))
	})
}

func list(hub *session.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("user_id")
		out := []Summary{}
		for _, s := range hub.List() {
			acc := s.Account()
			if user != "" && acc.UserID != user {
				continue
			}
			p := s.Processor()
			out = append(out, Summary{
				ID:          s.ID(),
				UserID:      acc.UserID,
				Tier:        acc.Tier.String(),
				Sent:        p.SentCount(),
				Blocked:     p.BlockedCount(),
				DedupSize:   p.DedupSize(),
				WaitingBeds: p.WaitingBeds(),
				NextPing:    s.NextPing(),
				Delay:       s.DelaySummary(),
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
		api.WriteJSON(w, out)
	}
}

func withSession(hub *session.Hub, fn func(http.ResponseWriter, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := hub.Get(chi.URLParam(r, "id"))
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		fn(w, s)
	}
}
