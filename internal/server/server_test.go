package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/keyduel/keyduel/internal/config"
	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/match"
	"github.com/keyduel/keyduel/internal/matchmaking"
	"github.com/keyduel/keyduel/internal/model"
	"github.com/keyduel/keyduel/internal/store"
	"github.com/keyduel/keyduel/internal/testutil"
)

type stubQueue struct{}

func (stubQueue) Enqueue(context.Context, model.Mode, model.QueueEntry, matchmaking.PairingCallback) error {
	return nil
}
func (stubQueue) Cancel(context.Context, model.Mode, model.PlayerID) error { return nil }
func (stubQueue) QueuePosition(context.Context, model.Mode, model.PlayerID) (int, error) {
	return 0, nil
}

type stubRunner struct{}

func (stubRunner) RegisterCallbacks(model.PlayerID, match.Callbacks) error { return nil }
func (stubRunner) HandleKeystroke(context.Context, model.PlayerID, model.Keystroke) error {
	return nil
}
func (stubRunner) HandleWordComplete(context.Context, model.PlayerID, int) error { return nil }
func (stubRunner) Forfeit(context.Context, model.PlayerID)                       {}

func newTestServer(t *testing.T) (*Server, *store.HMACIdentity) {
	t.Helper()
	cfg := config.DefaultServer()
	cfg.AllowedOrigins = []string{"https://keyduel.example"}

	identity := store.NewHMACIdentity([]byte("test-key"))
	srv := New(Deps{
		Config:      cfg,
		Matchmaker:  stubQueue{},
		MatchRunner: stubRunner{},
		Users:       testutil.NewUserStore(),
		Friends:     testutil.NewFriendGraph(),
		Identity:    identity,
	})
	t.Cleanup(srv.Close)
	return srv, identity
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
}

// frame is the test-side envelope; Data stays raw for per-type
// decoding.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readFrameOfType reads frames until one of the wanted type arrives.
func readFrameOfType(t *testing.T, conn *websocket.Conn, want string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s frame: %v", want, err)
		}
		if f.Type == want {
			return f
		}
	}
}

func TestCheckOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin header", "", "keyduel.example", true},
		{"same host", "https://keyduel.example", "keyduel.example", true},
		{"allow-listed", "https://keyduel.example", "other.host", true},
		{"unlisted", "https://evil.example", "keyduel.example", false},
		{"unparseable", "://bad", "keyduel.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := srv.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestHandleWSAuth(t *testing.T) {
	srv, identity := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tok := identity.Mint("p1", time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/ws?token=garbage")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("asserted id mismatch", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/ws?token=" + tok + "&player_id=p2")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("valid token upgrades", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+tok), nil)
		require.NoError(t, err)
		defer conn.Close()
		require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	})
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPingPongCarriesServerTime(t *testing.T) {
	srv, identity := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+identity.Mint("p1", time.Hour)), nil)
	require.NoError(t, err)
	defer conn.Close()

	before := time.Now().UnixMilli()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgPing}))

	f := readFrameOfType(t, conn, MsgPong)
	var pong PongPayload
	require.NoError(t, json.Unmarshal(f.Data, &pong))
	require.GreaterOrEqual(t, pong.ServerTimeMs, before)
	require.LessOrEqual(t, pong.ServerTimeMs, time.Now().UnixMilli())
}

func TestRateLimitRepliesWithErrorOnce(t *testing.T) {
	srv, identity := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+identity.Mint("p1", time.Hour)), nil)
	require.NoError(t, err)
	defer conn.Close()

	// Blow well past the burst allowance inside one window.
	for i := 0; i < constants.RateLimitMessages+30; i++ {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgPing}))
	}

	f := readFrameOfType(t, conn, MsgError)
	var ep ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &ep))
	require.Equal(t, CodeRateLimitExceeded, ep.Code)

	// The session survives the flood: once the window passes, frames
	// flow again.
	time.Sleep(constants.RateLimitWindow + 100*time.Millisecond)
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgPing}))
	readFrameOfType(t, conn, MsgPong)
}

func TestQueueUpdateCarriesElapsed(t *testing.T) {
	srv, identity := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+identity.Mint("p1", time.Hour)), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgJoinQueue}))

	f := readFrameOfType(t, conn, MsgQueueUpdate)
	var qu QueueUpdatePayload
	require.NoError(t, json.Unmarshal(f.Data, &qu))
	require.Equal(t, model.ModeRanked, qu.Mode)
	require.Equal(t, 0, qu.Position)
	require.GreaterOrEqual(t, qu.Elapsed, 0.0)
	require.Less(t, qu.Elapsed, 10.0)
}

func TestSecondConnectionEvictsFirst(t *testing.T) {
	srv, identity := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tok := identity.Mint("p1", time.Hour)

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+tok), nil)
	require.NoError(t, err)
	defer first.Close()

	second, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+tok), nil)
	require.NoError(t, err)
	defer second.Close()

	// The superseded session receives a policy-violation close frame.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = first.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"expected policy-violation close, got %v", err)

	// The newer session stays up.
	require.NoError(t, second.WriteJSON(ClientMessage{Type: MsgPing}))
	var msg ServerMessage
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, second.ReadJSON(&msg))
	require.Equal(t, MsgPong, msg.Type)
}

func TestHubPresencePublishesCountAndRoster(t *testing.T) {
	h := NewHub()
	defer h.Close()

	a := &Client{id: "a", ip: "10.0.0.1", closed: make(chan struct{}), send: make(chan ServerMessage, 4)}
	b := &Client{id: "b", ip: "10.0.0.2", closed: make(chan struct{}), send: make(chan ServerMessage, 4)}
	h.Register(a)
	h.Register(b)

	require.Equal(t, []model.PlayerID{"a", "b"}, h.OnlineUsers())

	h.publishPresence()

	count := <-a.send
	require.Equal(t, MsgOnlineCount, count.Type)
	require.Equal(t, OnlineCountPayload{Online: 2}, count.Data)

	roster := <-a.send
	require.Equal(t, MsgOnlineUsers, roster.Type)
	require.Equal(t, OnlineUsersPayload{Players: []model.PlayerID{"a", "b"}}, roster.Data)

	// Every session receives the same frames.
	require.Len(t, b.send, 2)
}

func TestHubUnregisterOnlyDropsCurrentSession(t *testing.T) {
	h := NewHub()
	defer h.Close()

	cur := &Client{id: "p1", ip: "10.0.0.1", closed: make(chan struct{}), send: make(chan ServerMessage, 1)}
	h.byPlayer["p1"] = cur
	h.byIP["10.0.0.1"] = cur

	stale := &Client{id: "p1", ip: "10.0.0.1", closed: make(chan struct{})}
	h.Unregister(stale)
	require.Equal(t, cur, h.Client("p1"), "a stale unregister must not drop the live session")

	h.Unregister(cur)
	require.Nil(t, h.Client("p1"))
	require.Zero(t, h.OnlineCount())
}
