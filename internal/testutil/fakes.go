// Package testutil provides in-memory fakes for the store contracts.
package testutil

import (
	"context"
	"sync"

	"github.com/keyduel/keyduel/internal/model"
	"github.com/keyduel/keyduel/internal/store"
)

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu       sync.Mutex
	Profiles map[model.PlayerID]*model.Profile

	// FailGet forces Get to return this error when set.
	FailGet error
}

// NewUserStore builds an empty fake user store.
func NewUserStore() *UserStore {
	return &UserStore{Profiles: make(map[model.PlayerID]*model.Profile)}
}

// Put seeds a profile.
func (s *UserStore) Put(p *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Profiles[p.ID] = p
}

func (s *UserStore) Get(_ context.Context, id model.PlayerID) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet != nil {
		return nil, s.FailGet
	}
	p, ok := s.Profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *UserStore) AddCoins(_ context.Context, id model.PlayerID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Coins += delta
	if p.Coins < 0 {
		p.Coins = 0
	}
	return nil
}

func (s *UserStore) UpdateStats(_ context.Context, id model.PlayerID, patch model.StatsPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Profiles[id]
	if !ok {
		return store.ErrNotFound
	}

	n := float64(p.TotalMatches)
	p.AvgWPM = (p.AvgWPM*n + patch.WPM) / (n + 1)
	p.AvgAccuracy = (p.AvgAccuracy*n + patch.Accuracy) / (n + 1)

	p.Elo += patch.EloDelta
	if p.Elo < 0 {
		p.Elo = 0
	}
	p.TotalMatches++
	if patch.Won {
		p.Wins++
	}
	if patch.Lost {
		p.Losses++
	}
	if patch.PeakElo > p.PeakElo {
		p.PeakElo = patch.PeakElo
	}
	if patch.BestWPM > p.BestWPM {
		p.BestWPM = patch.BestWPM
	}
	if patch.RankBGSet {
		p.RankBackground = patch.RankBG
	}
	return nil
}

var _ store.UserStore = (*UserStore)(nil)

// MatchStore is an in-memory store.MatchStore.
type MatchStore struct {
	mu      sync.Mutex
	Records map[string]model.MatchRecord
}

// NewMatchStore builds an empty fake archive.
func NewMatchStore() *MatchStore {
	return &MatchStore{Records: make(map[string]model.MatchRecord)}
}

func (s *MatchStore) Insert(_ context.Context, rec model.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Records[rec.MatchID]; ok {
		return nil // idempotent, same as ON CONFLICT DO NOTHING
	}
	s.Records[rec.MatchID] = rec
	return nil
}

// Get returns the archived record, if any.
func (s *MatchStore) Get(matchID string) (model.MatchRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.Records[matchID]
	return rec, ok
}

var _ store.MatchStore = (*MatchStore)(nil)

// AuditSink records events in memory.
type AuditSink struct {
	mu     sync.Mutex
	Events []store.AuditEvent
}

// NewAuditSink builds an empty recording sink.
func NewAuditSink() *AuditSink {
	return &AuditSink{}
}

func (s *AuditSink) Log(_ context.Context, ev store.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
}

// Kinds returns the recorded event kinds in order.
func (s *AuditSink) Kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Events))
	for i, ev := range s.Events {
		out[i] = ev.Kind
	}
	return out
}

var _ store.AuditSink = (*AuditSink)(nil)

// FriendGraph serves a static adjacency map.
type FriendGraph struct {
	Friends map[model.PlayerID][]model.PlayerID
}

// NewFriendGraph builds an empty graph.
func NewFriendGraph() *FriendGraph {
	return &FriendGraph{Friends: make(map[model.PlayerID][]model.PlayerID)}
}

func (g *FriendGraph) FriendsOf(_ context.Context, id model.PlayerID) ([]model.PlayerID, error) {
	return g.Friends[id], nil
}

var _ store.FriendGraph = (*FriendGraph)(nil)

// Leaderboard returns fixed bonuses and records score updates.
type Leaderboard struct {
	mu      sync.Mutex
	Bonuses map[model.PlayerID]store.LeaderboardBonus
	Scores  map[model.PlayerID]int
}

// NewLeaderboard builds an empty fake leaderboard.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		Bonuses: make(map[model.PlayerID]store.LeaderboardBonus),
		Scores:  make(map[model.PlayerID]int),
	}
}

func (l *Leaderboard) BonusFor(_ context.Context, id model.PlayerID) (store.LeaderboardBonus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Bonuses[id], nil
}

func (l *Leaderboard) SetScore(_ context.Context, id model.PlayerID, elo int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Scores[id] = elo
	return nil
}

var _ store.LeaderboardQuery = (*Leaderboard)(nil)
