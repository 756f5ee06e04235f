package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	subscriberSize = 32

	// terminal events stay replayable this long after a run ends
	terminalRetention = 5 * time.Minute
)

type subscriber struct {
	send chan entity.Progress
}

// ProgressHub streams progress events of a run to websocket subscribers.
// The latest event of every run is replayed to new subscribers, including
// the terminal one for a while after the run ends.
type ProgressHub struct {
	mu       sync.Mutex
	subs     map[string]map[*subscriber]struct{}
	last     map[string]entity.Progress
	expires  map[string]time.Time
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

var _ repository.ProgressSink = (*ProgressHub)(nil)

func NewProgressHub(logger *slog.Logger) *ProgressHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHub{
		subs:    make(map[string]map[*subscriber]struct{}),
		last:    make(map[string]entity.Progress),
		expires: make(map[string]time.Time),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (h *ProgressHub) Publish(_ context.Context, p entity.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	h.pruneLocked(now)
	h.last[p.RunID] = p
	if p.State.Terminal() {
		h.expires[p.RunID] = now.Add(terminalRetention)
	} else {
		delete(h.expires, p.RunID)
	}
	for s := range h.subs[p.RunID] {
		select {
		case s.send <- p:
		default:
			h.logger.Warn("progress subscriber is slow, dropping event", "run_id", p.RunID)
		}
	}
	metrics.IncEventPublished("websocket")
}

func (h *ProgressHub) subscribe(runID string) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pruneLocked(time.Now())
	s := &subscriber{send: make(chan entity.Progress, subscriberSize)}
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[*subscriber]struct{})
	}
	h.subs[runID][s] = struct{}{}
	if p, ok := h.last[runID]; ok {
		s.send <- p
	}
	return s
}

func (h *ProgressHub) pruneLocked(now time.Time) {
	for id, at := range h.expires {
		if now.After(at) {
			delete(h.expires, id)
			delete(h.last, id)
		}
	}
}

func (h *ProgressHub) unsubscribe(runID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[runID], s)
	if len(h.subs[runID]) == 0 {
		delete(h.subs, runID)
	}
}

func (h *ProgressHub) Subscribers(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[runID])
}

// Serve upgrades the request and streams events of runID until a terminal
// event is sent or the client goes away.
func (h *ProgressHub) Serve(w http.ResponseWriter, r *http.Request, runID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "run_id", runID, "err", err)
		return
	}
	metrics.IncWSConnections()
	defer metrics.DecWSConnections()

	s := h.subscribe(runID)
	defer h.unsubscribe(runID, s)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		<-closed
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case p := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(p); err != nil {
				h.logger.Debug("websocket write failed", "run_id", runID, "err", err)
				return
			}
			if p.State.Terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(p.State)),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
