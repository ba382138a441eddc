package server

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/match"
	"github.com/keyduel/keyduel/internal/model"
)

const maxFrameSize = 4096

var errSendBufferFull = errors.New("send buffer full")
var errClientClosed = errors.New("client closed")

// Client is one authenticated WebSocket session. Outbound frames go
// through the send channel; writePump is the only writer on the
// connection.
type Client struct {
	id model.PlayerID
	ip string

	conn    *websocket.Conn
	send    chan ServerMessage
	srv     *Server
	limiter *rate.Limiter

	mu              sync.Mutex
	queueMode       model.Mode // empty when not searching
	queuedAt        time.Time
	lastLimitNotice time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(srv *Server, conn *websocket.Conn, id model.PlayerID, ip string) *Client {
	return &Client{
		id:      id,
		ip:      ip,
		conn:    conn,
		send:    make(chan ServerMessage, srv.cfg.SendQueueSize),
		srv:     srv,
		limiter: rate.NewLimiter(rate.Every(constants.RateLimitWindow/constants.RateLimitMessages), constants.RateLimitMessages),
		closed:  make(chan struct{}),
	}
}

// trySend queues a frame without blocking. The error return feeds the
// match layer's delivery retries.
func (c *Client) trySend(msg ServerMessage) error {
	select {
	case <-c.closed:
		return errClientClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Client) sendError(code, message string) {
	_ = c.trySend(ServerMessage{
		Type: MsgError,
		Data: ErrorPayload{Code: code, Message: message},
	})
}

// closeWith shuts the session down once, with a close frame carrying
// the reason.
func (c *Client) closeWith(reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}

// setQueueMode records which queue the player is searching in; the
// empty mode means not searching.
func (c *Client) setQueueMode(mode model.Mode) {
	c.mu.Lock()
	c.queueMode = mode
	if mode == "" {
		c.queuedAt = time.Time{}
	} else {
		c.queuedAt = time.Now()
	}
	c.mu.Unlock()
}

func (c *Client) currentQueueMode() model.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueMode
}

func (c *Client) queueState() (model.Mode, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueMode, c.queuedAt
}

// noteRateLimited surfaces a flood to the client at most once per
// rate-limit window. The session stays up; only the excess frames are
// dropped.
func (c *Client) noteRateLimited() {
	now := time.Now()
	c.mu.Lock()
	notify := now.Sub(c.lastLimitNotice) >= constants.RateLimitWindow
	if notify {
		c.lastLimitNotice = now
	}
	c.mu.Unlock()

	if notify {
		c.sendError(CodeRateLimitExceeded, "message rate limit exceeded")
	}
}

// callbacks exposes the client as the session's delivery sinks.
func (c *Client) callbacks() match.Callbacks {
	return match.Callbacks{Start: c, Progress: c, End: c}
}

// GameStart implements match.GameStartSink.
func (c *Client) GameStart(scheduledStartMs int64, duration time.Duration) error {
	return c.trySend(ServerMessage{
		Type: MsgGameStart,
		Data: GameStartPayload{StartAtMs: scheduledStartMs, DurationMs: duration.Milliseconds()},
	})
}

// OpponentProgress implements match.ProgressSink.
func (c *Client) OpponentProgress(charIndex, wordIndex int) error {
	return c.trySend(ServerMessage{
		Type: MsgOpponentProgress,
		Data: OpponentProgressPayload{CharIndex: charIndex, WordIndex: wordIndex},
	})
}

// GameEnd implements match.EndSink.
func (c *Client) GameEnd(result model.MatchResult) error {
	return c.trySend(ServerMessage{
		Type: MsgGameEnd,
		Data: result,
	})
}

// matchFound is the pairing callback: install the session sinks first
// so a keystroke racing the MATCH_FOUND frame still finds them.
func (c *Client) matchFound(mf model.MatchFound) error {
	c.setQueueMode("")
	if err := c.srv.matches.RegisterCallbacks(c.id, c.callbacks()); err != nil {
		return err
	}
	return c.trySend(ServerMessage{Type: MsgMatchFound, Data: mf})
}

// readPump consumes inbound frames until the connection dies.
func (c *Client) readPump() {
	defer func() {
		c.srv.handleDisconnect(c)
		c.closeWith("")
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.ReadTimeout))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read failed", "player", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.ReadTimeout))

		// Flood frames are dropped, not processed. The client is told
		// once per window; the notice itself must not amplify the flood.
		if !c.limiter.Allow() {
			c.noteRateLimited()
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump is the single connection writer: outbound frames plus
// keepalive pings.
func (c *Client) writePump() {
	pingInterval := c.srv.cfg.ReadTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.closeWith("")
	}()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// queueLoop ticks QUEUE_UPDATE while the player is searching.
func (c *Client) queueLoop() {
	ticker := time.NewTicker(constants.QueueUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
		}

		mode, since := c.queueState()
		if mode == "" {
			continue
		}

		pos, err := c.srv.queue.QueuePosition(c.srv.rootCtx, mode, c.id)
		if err != nil {
			continue
		}
		_ = c.trySend(ServerMessage{
			Type: MsgQueueUpdate,
			Data: QueueUpdatePayload{
				Mode:     mode,
				Position: pos,
				Elapsed:  time.Since(since).Seconds(),
			},
		})
	}
}

// handleMessage dispatches one inbound frame. A panicking handler
// must not take the connection down.
func (c *Client) handleMessage(msg ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in message handler",
				"player", c.id, "type", msg.Type, "panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	switch msg.Type {
	case MsgJoinQueue:
		c.handleJoinQueue(model.ModeRanked)
	case MsgJoinTrainingQueue:
		c.handleJoinQueue(model.ModeTraining)
	case MsgJoinFriendsQueue:
		c.handleJoinQueue(model.ModeFriends)
	case MsgLeaveQueue:
		c.handleLeaveQueue()
	case MsgKeystroke:
		c.handleKeystroke(msg.Data)
	case MsgWordComplete:
		c.handleWordComplete(msg.Data)
	case MsgPing:
		_ = c.trySend(ServerMessage{
			Type: MsgPong,
			Data: PongPayload{ServerTimeMs: time.Now().UnixMilli()},
		})
	default:
		slog.Debug("unknown message type", "player", c.id, "type", msg.Type)
	}
}
