// ABOUTME: In-process navigator holding the console location and back stack
// ABOUTME: Stands in for the browser location in the console binary and in tests

package navigation

import "sync"

// History is an in-memory Navigator. Listeners run after every location
// change, outside the lock, so they may navigate again.
type History struct {
	mu        sync.Mutex
	entries   []string
	listeners []func(path string)
}

var _ Navigator = (*History)(nil)

// NewHistory creates a history positioned at start.
func NewHistory(start string) *History {
	if start == "" {
		start = "/"
	}
	return &History{entries: []string{start}}
}

// OnChange registers a listener for location changes.
func (h *History) OnChange(fn func(path string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Navigate pushes target and notifies listeners.
func (h *History) Navigate(target string) {
	h.mu.Lock()
	h.entries = append(h.entries, target)
	listeners := append([]func(string){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(target)
	}
}

// Back pops the current entry and notifies listeners with the previous one.
// Returns false at the start of history.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	if len(h.entries) < 2 {
		h.mu.Unlock()
		return "", false
	}
	h.entries = h.entries[:len(h.entries)-1]
	path := h.entries[len(h.entries)-1]
	listeners := append([]func(string){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(path)
	}
	return path, true
}

// Location returns the current path.
func (h *History) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[len(h.entries)-1]
}

// Entries returns a copy of the back stack, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}
