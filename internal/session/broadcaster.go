// ABOUTME: In-memory fan-out of session snapshots to read-only observers
// ABOUTME: Slow subscribers keep only the newest snapshot instead of blocking the writer

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 16

// broadcaster publishes every committed snapshot to all subscribers.
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan Session
	closed      bool
	logger      *slog.Logger
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{
		subscribers: make(map[string]chan Session),
		logger:      logger,
	}
}

// subscribe registers a subscriber. The channel is closed when ctx is
// cancelled or the broadcaster shuts down.
func (b *broadcaster) subscribe(ctx context.Context) <-chan Session {
	subID := uuid.New().String()
	ch := make(chan Session, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.unsubscribe(subID)
	}()

	return ch
}

// publish delivers s to every subscriber without blocking. A full channel
// loses its oldest snapshot so the newest one always lands.
func (b *broadcaster) publish(s Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- s:
			continue
		default:
		}

		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
			b.logger.Debug("dropped snapshot for slow subscriber", "sub_id", id)
		}
	}
}

func (b *broadcaster) unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// close shuts down the broadcaster and closes all subscriber channels.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
