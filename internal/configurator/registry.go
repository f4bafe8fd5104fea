package configurator

import (
	"sync"
	"time"
)

// Registry keeps one configurator per shopper session in process memory.
// Entries idle for longer than IdleTTL are dropped.
type Registry struct {
	New     func() *Configurator
	IdleTTL time.Duration
	Now     func() time.Time

	mu        sync.Mutex
	entries   map[string]*registryEntry
	lastSweep time.Time
}

type registryEntry struct {
	cfg      *Configurator
	lastUsed time.Time
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Get returns the configurator for session, creating it when absent.
func (r *Registry) Get(session string) *Configurator {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if r.entries == nil {
		r.entries = make(map[string]*registryEntry)
	}
	r.sweepLocked(now)
	if e, ok := r.entries[session]; ok {
		e.lastUsed = now
		return e.cfg
	}
	var cfg *Configurator
	if r.New != nil {
		cfg = r.New()
	} else {
		cfg = &Configurator{}
	}
	r.entries[session] = &registryEntry{cfg: cfg, lastUsed: now}
	return cfg
}

// Drop forgets the configurator for session.
func (r *Registry) Drop(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, session)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) sweepLocked(now time.Time) {
	if r.IdleTTL <= 0 || now.Sub(r.lastSweep) < r.IdleTTL/2 {
		return
	}
	r.lastSweep = now
	for session, e := range r.entries {
		if now.Sub(e.lastUsed) > r.IdleTTL {
			delete(r.entries, session)
		}
	}
}
