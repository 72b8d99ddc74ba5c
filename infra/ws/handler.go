package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/session"
	"github.com/kilianp07/flipnotify/infra/logger"
)

const maxFrameSize = 64 << 10

// Handler upgrades requests and runs one session per connection. The
// account comes from the query: ?user=<id>&uuid=<minecraft uuid>&tier=<tier>.
type Handler struct {
	ctx      context.Context
	hub      *session.Hub
	deps     session.Deps
	defaults *model.FilterSettings
	upgrader websocket.Upgrader
	log      logger.Logger
	// ReadTimeout closes connections that stay silent for longer.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewHandler returns a handler whose sessions end when ctx is cancelled.
func NewHandler(ctx context.Context, hub *session.Hub, deps session.Deps, defaults *model.FilterSettings) *Handler {
	if defaults == nil {
		defaults = model.DefaultSettings()
	}
	return &Handler{
		ctx:      ctx,
		hub:      hub,
		deps:     deps,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:          logger.New("ws"),
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 10 * time.Second,
	}
}

func accountFrom(r *http.Request) (model.AccountInfo, bool) {
	q := r.URL.Query()
	acc := model.AccountInfo{UserID: q.Get("user"), McUUID: q.Get("uuid")}
	if acc.UserID == "" {
		return acc, false
	}
	if t := q.Get("tier"); t != "" {
		tier, err := model.ParseTier(t)
		if err != nil {
			return acc, false
		}
		acc.Tier = tier
	}
	return acc, true
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFrom(r)
	if !ok {
		http.Error(w, "missing or invalid account", http.StatusBadRequest)
		return
	}
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	conn := NewConn(wsConn, h.WriteTimeout)
	deps := h.deps
	if deps.Challenger == nil {
		deps.Challenger = conn
	}
	s, err := session.New(h.ctx, conn, account, h.defaults.Clone(), deps)
	if err != nil {
		h.log.Errorf("session for %s: %v", account.UserID, err)
		_ = conn.Close()
		return
	}
	h.hub.Add(s)
	h.log.Infof("session %s opened for %s (%s)", s.ID(), account.UserID, account.Tier)
	defer s.Close()

	wsConn.SetReadLimit(maxFrameSize)
	h.readLoop(wsConn, s)
	h.log.Infof("session %s closed", s.ID())
}

func (h *Handler) readLoop(wsConn *websocket.Conn, s *session.Session) {
	go func() {
		<-s.Done()
		_ = wsConn.SetReadDeadline(time.Now())
	}()
	for {
		_ = wsConn.SetReadDeadline(time.Now().Add(h.ReadTimeout))
		var env Envelope
		if err := wsConn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debugf("read from %s: %v", s.ID(), err)
			}
			return
		}
		switch env.Type {
		case TypeSettings:
			settings := h.defaults.Clone()
			if err := json.Unmarshal(env.Data, settings); err != nil {
				h.log.Warnf("bad settings from %s: %v", s.ID(), err)
				continue
			}
			s.UpdateSettings(settings)
		case TypePong:
			s.Heartbeat()
		default:
			h.log.Debugf("ignoring %q from %s", env.Type, s.ID())
		}
	}
}
