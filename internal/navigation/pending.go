// ABOUTME: Thread-safe TTL set of navigation targets that are still in flight
// ABOUTME: Lets the navigation effect suppress duplicate redirects to the same target

package navigation

import (
	"container/list"
	"sync"
	"time"
)

// pendingEntry stores the issue time and list element for a target.
type pendingEntry struct {
	issuedAt time.Time
	element  *list.Element
}

// pendingSet tracks issued navigation targets until they land or expire.
// A doubly-linked list keeps issue order for O(1) eviction.
type pendingSet struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
	order   *list.List // targets in issue order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

func newPendingSet(ttl time.Duration, maxSize int) *pendingSet {
	p := &pendingSet{
		entries: make(map[string]*pendingEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go p.cleanup()
	return p
}

// checkAndMark atomically reports whether target is already in flight and
// marks it if not. Returns true for a duplicate.
func (p *pendingSet) checkAndMark(target string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.entries[target]; ok {
		if p.now().Sub(entry.issuedAt) < p.ttl {
			return true
		}
		p.order.Remove(entry.element)
		delete(p.entries, target)
	}

	if len(p.entries) >= p.maxSize {
		p.evictOldest()
	}

	elem := p.order.PushBack(target)
	p.entries[target] = &pendingEntry{
		issuedAt: p.now(),
		element:  elem,
	}
	return false
}

// forget releases a target once its navigation has landed.
func (p *pendingSet) forget(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.entries[target]; ok {
		p.order.Remove(entry.element)
		delete(p.entries, target)
	}
}

// contains reports whether target is in flight and not expired.
func (p *pendingSet) contains(target string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[target]
	return ok && p.now().Sub(entry.issuedAt) < p.ttl
}

// evictOldest must be called with mu held.
func (p *pendingSet) evictOldest() {
	front := p.order.Front()
	if front == nil {
		return
	}
	target, _ := front.Value.(string)
	p.order.Remove(front)
	delete(p.entries, target)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (p *pendingSet) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runCleanup()
		case <-p.done:
			return
		}
	}
}

func (p *pendingSet) runCleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for target, entry := range p.entries {
		if now.Sub(entry.issuedAt) >= p.ttl {
			p.order.Remove(entry.element)
			delete(p.entries, target)
		}
	}
}

// close stops the background cleanup goroutine. Safe to call multiple times.
func (p *pendingSet) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.done)
		p.closed = true
	}
}
