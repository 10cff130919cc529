package player

import (
	"sort"
	"sync"
)

// Registry maps guild IDs to their player. There is at most one player per
// guild; entries are only added by GetOrCreate and only removed by Remove.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[guildID]
	return p, ok
}

// GetOrCreate returns the guild's player, building it with create when there
// is none. created reports whether create was used.
func (r *Registry) GetOrCreate(guildID string, create func() *Player) (p *Player, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[guildID]; ok {
		return p, false
	}
	p = create()
	r.players[guildID] = p
	return p, true
}

// Remove deletes the entry only if it still points at p, so a stale handler
// cannot remove a newer player of the same guild.
func (r *Registry) Remove(guildID string, p *Player) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.players[guildID]; !ok || cur != p {
		return false
	}
	delete(r.players, guildID)
	return true
}

// All returns the registered players ordered by guild ID.
func (r *Registry) All() []*Player {
	r.mu.RLock()
	list := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		list = append(list, p)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].guildID < list[j].guildID
	})
	return list
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
