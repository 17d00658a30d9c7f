package chattr

import (
	"sort"
	"sync"
)

// Presence tracks which users are currently online. The set is replaced
// wholesale on every snapshot the server pushes; there is no polling.
type Presence struct {
	mu       sync.RWMutex
	online   map[string]struct{}
	onChange func([]string)
}

func newPresence() *Presence {
	return &Presence{online: make(map[string]struct{})}
}

// IsOnline reports whether the user is in the latest snapshot.
func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}

// Online returns the current set as a sorted slice.
func (p *Presence) Online() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	p.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// OnChange registers a callback invoked with the new set after every
// snapshot.
func (p *Presence) OnChange(fn func(online []string)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *Presence) replace(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	p.mu.Lock()
	p.online = next
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn(p.Online())
	}
}
