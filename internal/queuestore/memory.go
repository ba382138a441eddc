package queuestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/keyduel/keyduel/internal/model"
)

// Memory is an in-process Store for tests and single-node runs.
// Lock TTLs expire lazily on the next AcquireLock.
type Memory struct {
	mu      sync.Mutex
	queues  map[model.Mode]map[model.PlayerID]model.QueueEntry
	matched map[model.Mode]map[model.PlayerID]struct{}
	locks   map[model.PlayerID]time.Time // expiry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		queues:  make(map[model.Mode]map[model.PlayerID]model.QueueEntry),
		matched: make(map[model.Mode]map[model.PlayerID]struct{}),
		locks:   make(map[model.PlayerID]time.Time),
	}
}

func (m *Memory) queue(mode model.Mode) map[model.PlayerID]model.QueueEntry {
	q, ok := m.queues[mode]
	if !ok {
		q = make(map[model.PlayerID]model.QueueEntry)
		m.queues[mode] = q
	}
	return q
}

func (m *Memory) matchedSet(mode model.Mode) map[model.PlayerID]struct{} {
	s, ok := m.matched[mode]
	if !ok {
		s = make(map[model.PlayerID]struct{})
		m.matched[mode] = s
	}
	return s
}

func (m *Memory) Enqueue(_ context.Context, mode model.Mode, entry model.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue(mode)[entry.PlayerID] = entry
	return nil
}

func (m *Memory) Dequeue(_ context.Context, mode model.Mode, id model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queue(mode), id)
	return nil
}

func (m *Memory) IsQueued(_ context.Context, mode model.Mode, id model.PlayerID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.queue(mode)[id]
	return ok, nil
}

// ordered returns queue members sorted by JoinedAt.
func (m *Memory) ordered(mode model.Mode) []model.QueueEntry {
	q := m.queue(mode)
	entries := make([]model.QueueEntry, 0, len(q))
	for _, e := range q {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].JoinedAt != entries[j].JoinedAt {
			return entries[i].JoinedAt < entries[j].JoinedAt
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	return entries
}

func (m *Memory) QueuePosition(_ context.Context, mode model.Mode, id model.PlayerID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.ordered(mode) {
		if e.PlayerID == id {
			return i, nil
		}
	}
	return 0, ErrNotQueued
}

func (m *Memory) Entry(_ context.Context, mode model.Mode, id model.PlayerID) (*model.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.queue(mode)[id]
	if !ok {
		return nil, ErrNotQueued
	}
	out := e
	return &out, nil
}

func (m *Memory) OldestIDs(_ context.Context, mode model.Mode, limit int, exclude model.PlayerID) ([]model.PlayerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]model.PlayerID, 0, limit)
	for _, e := range m.ordered(mode) {
		if e.PlayerID == exclude {
			continue
		}
		ids = append(ids, e.PlayerID)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *Memory) MatchedMany(_ context.Context, mode model.Mode, ids []model.PlayerID) ([]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.matchedSet(mode)
	out := make([]bool, len(ids))
	for i, id := range ids {
		_, out[i] = s[id]
	}
	return out, nil
}

func (m *Memory) IsMatched(_ context.Context, mode model.Mode, id model.PlayerID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.matchedSet(mode)[id]
	return ok, nil
}

func (m *Memory) MarkMatched(_ context.Context, mode model.Mode, a, b model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.matchedSet(mode)
	if a != "" {
		s[a] = struct{}{}
	}
	if b != "" {
		s[b] = struct{}{}
	}
	return nil
}

func (m *Memory) ClearMatched(_ context.Context, mode model.Mode, ids ...model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.matchedSet(mode)
	for _, id := range ids {
		delete(s, id)
	}
	return nil
}

func (m *Memory) AcquireLock(_ context.Context, id model.PlayerID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, held := m.locks[id]; held && time.Now().Before(exp) {
		return false, nil
	}
	m.locks[id] = time.Now().Add(ttl)
	return true, nil
}

func (m *Memory) ReleaseLock(_ context.Context, id model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, id)
	return nil
}

var _ Store = (*Memory)(nil)
