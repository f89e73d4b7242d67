package audit

import "sync"

// PendingSet holds fingerprints whose submission has not settled yet.
type PendingSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewPendingSet returns an empty set.
func NewPendingSet() *PendingSet {
	return &PendingSet{keys: make(map[string]struct{})}
}

// TryAdd inserts key and reports false if it was already pending.
func (p *PendingSet) TryAdd(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.keys[key]; ok {
		return false
	}
	p.keys[key] = struct{}{}
	return true
}

// Remove drops key.
func (p *PendingSet) Remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, key)
}

// Contains reports whether key is pending.
func (p *PendingSet) Contains(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.keys[key]
	return ok
}

// Len reports the number of pending keys.
func (p *PendingSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
