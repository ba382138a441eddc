package server

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
)

// Hub tracks every live connection. One session per player and one
// per IP: a newer connection evicts the older one.
type Hub struct {
	mu       sync.RWMutex
	byPlayer map[model.PlayerID]*Client
	byIP     map[string]*Client

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub builds an empty hub and starts its presence ticker.
func NewHub() *Hub {
	h := &Hub{
		byPlayer: make(map[model.PlayerID]*Client),
		byIP:     make(map[string]*Client),
		done:     make(chan struct{}),
	}
	go h.presenceLoop()
	return h
}

// Close stops the presence ticker.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register installs the client, evicting any previous session for the
// same player or the same IP.
func (h *Hub) Register(c *Client) {
	var evicted []*Client

	h.mu.Lock()
	if prev, ok := h.byPlayer[c.id]; ok && prev != c {
		evicted = append(evicted, prev)
	}
	if prev, ok := h.byIP[c.ip]; ok && prev != c {
		evicted = append(evicted, prev)
	}
	for _, prev := range evicted {
		delete(h.byPlayer, prev.id)
		delete(h.byIP, prev.ip)
	}
	h.byPlayer[c.id] = c
	h.byIP[c.ip] = c
	h.mu.Unlock()

	for _, prev := range evicted {
		slog.Info("evicting superseded session", "player", prev.id, "ip", prev.ip)
		prev.closeWith("superseded by a newer connection")
	}
}

// Unregister drops the client if it is still the registered session.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if cur, ok := h.byPlayer[c.id]; ok && cur == c {
		delete(h.byPlayer, c.id)
	}
	if cur, ok := h.byIP[c.ip]; ok && cur == c {
		delete(h.byIP, c.ip)
	}
	h.mu.Unlock()
}

// Client returns the live session for a player, nil if none.
func (h *Hub) Client(id model.PlayerID) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byPlayer[id]
}

// OnlineCount returns the number of live sessions.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPlayer)
}

// OnlineUsers returns the connected player ids in stable order.
func (h *Hub) OnlineUsers() []model.PlayerID {
	h.mu.RLock()
	ids := make([]model.PlayerID, 0, len(h.byPlayer))
	for id := range h.byPlayer {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Broadcast fans a frame out to every live session. Slow clients are
// skipped, not waited on.
func (h *Hub) Broadcast(msg ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.byPlayer {
		if err := c.trySend(msg); err != nil {
			slog.Debug("broadcast dropped", "player", c.id, "type", msg.Type)
		}
	}
}

// presenceLoop publishes presence on a fixed cadence.
func (h *Hub) presenceLoop() {
	ticker := time.NewTicker(constants.PresenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.publishPresence()
		}
	}
}

// publishPresence broadcasts the online count and the roster.
func (h *Hub) publishPresence() {
	h.Broadcast(ServerMessage{
		Type: MsgOnlineCount,
		Data: OnlineCountPayload{Online: h.OnlineCount()},
	})
	h.Broadcast(ServerMessage{
		Type: MsgOnlineUsers,
		Data: OnlineUsersPayload{Players: h.OnlineUsers()},
	})
}

// PublicMatchStarted implements the orchestrator's lobby broadcaster.
func (h *Hub) PublicMatchStarted(p1, p2 model.OpponentProfile, mode model.Mode) {
	h.Broadcast(ServerMessage{
		Type: MsgPublicMatchStarted,
		Data: PublicMatchPayload{Player1: p1, Player2: p2, Mode: mode},
	})
}

// PublicMatchEnded implements the orchestrator's lobby broadcaster.
func (h *Hub) PublicMatchEnded(p1, p2 model.OpponentProfile, mode model.Mode, winner model.PlayerID) {
	h.Broadcast(ServerMessage{
		Type: MsgPublicMatchEnded,
		Data: PublicMatchPayload{Player1: p1, Player2: p2, Mode: mode, Winner: winner},
	})
}
