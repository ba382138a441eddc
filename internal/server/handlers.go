package server

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/keyduel/keyduel/internal/match"
	"github.com/keyduel/keyduel/internal/model"
	"github.com/keyduel/keyduel/internal/store"
)

// handleJoinQueue builds the queue entry from the persistent profile
// and enrols the player. Joining a queue while already searching
// re-enqueues, which the coordinator treats as a fresh join.
func (c *Client) handleJoinQueue(mode model.Mode) {
	ctx := c.srv.rootCtx

	entry := model.QueueEntry{PlayerID: c.id}
	prof, err := c.srv.users.Get(ctx, c.id)
	switch {
	case err == nil:
		entry.Elo = prof.Elo
		entry.DisplayName = prof.DisplayName
		entry.PhotoRef = prof.PhotoRef
		entry.Cursor = prof.EquippedCursor
		entry.Effect = prof.EquippedEffect
	case errors.Is(err, store.ErrNotFound):
		// First match before the profile service caught up: queue at
		// the rating floor.
	default:
		slog.Error("profile load failed on enqueue", "player", c.id, "error", err)
		c.sendError(CodeQueueUnavailable, "profile unavailable")
		return
	}

	if mode == model.ModeFriends {
		friends, err := c.srv.friends.FriendsOf(ctx, c.id)
		if err != nil {
			slog.Error("friend list load failed", "player", c.id, "error", err)
			c.sendError(CodeQueueUnavailable, "friend list unavailable")
			return
		}
		if len(friends) == 0 {
			c.sendError(CodeNoFriends, "add friends to play friend matches")
			return
		}
		entry.Friends = friends
	}

	if err := c.srv.queue.Enqueue(ctx, mode, entry, c.matchFound); err != nil {
		slog.Error("enqueue failed", "player", c.id, "mode", mode, "error", err)
		c.sendError(CodeQueueUnavailable, "matchmaking unavailable")
		return
	}
	c.setQueueMode(mode)
}

// handleLeaveQueue cancels the current search. Idempotent.
func (c *Client) handleLeaveQueue() {
	mode := c.currentQueueMode()
	if mode == "" {
		return
	}
	c.setQueueMode("")
	if err := c.srv.queue.Cancel(c.srv.rootCtx, mode, c.id); err != nil {
		slog.Warn("queue cancel failed", "player", c.id, "mode", mode, "error", err)
	}
}

func (c *Client) handleKeystroke(data json.RawMessage) {
	var p KeystrokePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError(CodeInvalidPayload, "malformed keystroke")
		return
	}

	err := c.srv.matches.HandleKeystroke(c.srv.rootCtx, c.id, model.Keystroke{
		Char:        p.Char,
		TimestampMs: p.TimestampMs,
		CharIndex:   p.CharIndex,
	})
	switch {
	case err == nil:
	case errors.Is(err, match.ErrInvalidLatency):
		c.sendError(CodeInvalidKeystroke, "keystroke rejected")
	case errors.Is(err, match.ErrNotStarted):
		c.sendError(CodeRaceNotStarted, "race has not started")
	case errors.Is(err, match.ErrMatchFinished):
		c.sendError(CodeMatchFinished, "match already finished")
	case errors.Is(err, match.ErrNoSession), errors.Is(err, match.ErrUnknownPlayer):
		c.sendError(CodeNotInMatch, "no active match")
	default:
		slog.Error("keystroke handling failed", "player", c.id, "error", err)
	}
}

func (c *Client) handleWordComplete(data json.RawMessage) {
	var p WordCompletePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError(CodeInvalidPayload, "malformed word complete")
		return
	}

	err := c.srv.matches.HandleWordComplete(c.srv.rootCtx, c.id, p.WordIndex)
	switch {
	case err == nil:
	case errors.Is(err, match.ErrBadWordIndex):
		c.sendError(CodeBadWordIndex, "word index out of range")
	case errors.Is(err, match.ErrNotStarted):
		c.sendError(CodeRaceNotStarted, "race has not started")
	case errors.Is(err, match.ErrMatchFinished):
		c.sendError(CodeMatchFinished, "match already finished")
	case errors.Is(err, match.ErrNoSession), errors.Is(err, match.ErrUnknownPlayer):
		c.sendError(CodeNotInMatch, "no active match")
	default:
		slog.Error("word complete handling failed", "player", c.id, "error", err)
	}
}
