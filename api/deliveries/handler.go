// Package deliveries exposes tracked flip deliveries via
// GET /api/deliveries?start=&end=&account_id=&event_id=.
package deliveries

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/flipnotify/api"
	"github.com/kilianp07/flipnotify/core/tracking"
)

// NewHandler returns the query handler. Requests must include an
// Authorization header with "Bearer <token>" when token is non-empty.
func NewHandler(store tracking.Store, token string) http.Handler {
	return api.BearerAuth(token)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := tracking.Query{AccountID: r.URL.Query().Get("account_id")}
		if s := r.URL.Query().Get("start"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "bad start", http.StatusBadRequest)
				return
			}
			q.Start = t
		}
		if s := r.URL.Query().Get("end"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "bad end", http.StatusBadRequest)
				return
			}
			q.End = t
		}
		if s := r.URL.Query().Get("event_id"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "bad event_id", http.StatusBadRequest)
				return
			}
			q.EventID = id
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []tracking.Delivery{}
		}
		api.WriteJSON(w, records)
	}))
}

// FindStore returns the first queryable store behind t, unwrapping Multi.
func FindStore(t tracking.Tracker) (tracking.Store, bool) {
	switch v := t.(type) {
	case tracking.Store:
		return v, true
	case tracking.Multi:
		for _, inner := range v {
			if s, ok := FindStore(inner); ok {
				return s, true
			}
		}
	}
	return nil, false
}
