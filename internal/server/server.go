// Package server is the WebSocket edge: authentication, connection
// lifecycle, frame codec, and the bridge between sockets and the
// matchmaking and match layers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/keyduel/keyduel/internal/config"
	"github.com/keyduel/keyduel/internal/match"
	"github.com/keyduel/keyduel/internal/matchmaking"
	"github.com/keyduel/keyduel/internal/model"
	"github.com/keyduel/keyduel/internal/store"
)

// Matchmaker is the server's view of the queue coordinator.
type Matchmaker interface {
	Enqueue(ctx context.Context, mode model.Mode, entry model.QueueEntry, cb matchmaking.PairingCallback) error
	Cancel(ctx context.Context, mode model.Mode, id model.PlayerID) error
	QueuePosition(ctx context.Context, mode model.Mode, id model.PlayerID) (int, error)
}

// MatchRunner is the server's view of the match orchestrator.
type MatchRunner interface {
	RegisterCallbacks(id model.PlayerID, cbs match.Callbacks) error
	HandleKeystroke(ctx context.Context, id model.PlayerID, k model.Keystroke) error
	HandleWordComplete(ctx context.Context, id model.PlayerID, wordIndex int) error
	Forfeit(ctx context.Context, id model.PlayerID)
}

// Server accepts WebSocket sessions and routes their frames.
type Server struct {
	cfg      config.Server
	hub      *Hub
	queue    Matchmaker
	matches  MatchRunner
	users    store.UserStore
	friends  store.FriendGraph
	identity store.IdentityProvider

	upgrader websocket.Upgrader

	rootCtx context.Context
	cancel  context.CancelFunc
}

// Deps bundles the server's collaborators.
type Deps struct {
	Config      config.Server
	Hub         *Hub
	Matchmaker  Matchmaker
	MatchRunner MatchRunner
	Users       store.UserStore
	Friends     store.FriendGraph
	Identity    store.IdentityProvider
}

// New builds a Server. A nil Hub gets a fresh one.
func New(deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      deps.Config,
		hub:      deps.Hub,
		queue:    deps.Matchmaker,
		matches:  deps.MatchRunner,
		users:    deps.Users,
		friends:  deps.Friends,
		identity: deps.Identity,
		rootCtx:  ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Hub exposes the connection registry, which doubles as the
// orchestrator's lobby broadcaster.
func (s *Server) Hub() *Hub { return s.hub }

// Close stops accepting work on live connections.
func (s *Server) Close() {
	s.cancel()
	s.hub.Close()
}

// checkOrigin enforces the configured origin allow-list. Requests
// without an Origin header (non-browser clients) pass.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	slog.Warn("rejected origin", "origin", origin)
	return false
}

// Handler returns the HTTP mux: the WebSocket endpoint plus health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// handleWS authenticates the token, upgrades, and starts the session
// pumps.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	id, err := s.identity.Verify(token)
	if err != nil {
		slog.Warn("token rejected", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// A client may assert its identity explicitly; it must match the
	// token subject.
	if asserted := r.URL.Query().Get("player_id"); asserted != "" && model.PlayerID(asserted) != id {
		slog.Warn("player id mismatch", "token_subject", id, "asserted", asserted)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ip := clientIP(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(s, conn, id, ip)
	s.hub.Register(c)
	slog.Info("session opened", "player", id, "ip", ip)

	go c.writePump()
	go c.queueLoop()
	go c.readPump()
}

// handleDisconnect tears down everything a vanished session left
// behind: its queue membership and its live match.
func (s *Server) handleDisconnect(c *Client) {
	s.hub.Unregister(c)

	if mode := c.currentQueueMode(); mode != "" {
		if err := s.queue.Cancel(s.rootCtx, mode, c.id); err != nil {
			slog.Warn("dequeue on disconnect failed", "player", c.id, "error", err)
		}
	}

	// Disconnecting mid-match is a forfeit; the orchestrator no-ops
	// when there is no live session.
	s.matches.Forfeit(s.rootCtx, c.id)
	slog.Info("session closed", "player", c.id)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Run serves until ctx is cancelled, then drains with a bounded
// shutdown.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Close()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	}
}
