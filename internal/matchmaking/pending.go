package matchmaking

import (
	"sync"

	"github.com/keyduel/keyduel/internal/model"
)

// pendingMatches is a capped map of pairings awaiting orchestrator
// acknowledgement. On overflow the oldest pending match is evicted;
// its players recover via the matched-flag timeout in the search loop.
type pendingMatches struct {
	mu    sync.Mutex
	cap   int
	byID  map[string]*model.PendingMatch
	order []string
}

func newPendingMatches(cap int) *pendingMatches {
	return &pendingMatches{
		cap:  cap,
		byID: make(map[string]*model.PendingMatch),
	}
}

func (p *pendingMatches) put(pm *model.PendingMatch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byID[pm.MatchID]; !ok {
		p.order = append(p.order, pm.MatchID)
	}
	p.byID[pm.MatchID] = pm

	for len(p.byID) > p.cap && len(p.order) > 0 {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.byID, oldest)
	}
}

func (p *pendingMatches) remove(matchID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byID, matchID)
	for i, id := range p.order {
		if id == matchID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *pendingMatches) get(matchID string) (*model.PendingMatch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pm, ok := p.byID[matchID]
	return pm, ok
}

func (p *pendingMatches) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}
