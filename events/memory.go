package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/bookshelf/store"
)

// MemoryBroker is an in-process fanout with the same contract as the NATS
// broker. It serves the test suite and single-process deployments.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]chan store.Book
	logger *slog.Logger
}

// NewMemoryBroker creates an empty in-process broker
func NewMemoryBroker(logger *slog.Logger) *MemoryBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBroker{
		subs:   make(map[string]chan store.Book),
		logger: logger,
	}
}

// PublishBookAdded delivers the event to every current subscriber.
// Subscribers with full buffers miss the event.
func (b *MemoryBroker) PublishBookAdded(_ context.Context, book store.Book) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- book:
		default:
			b.logger.Warn("dropping event for slow subscriber", "subscriber", id)
		}
	}
	return nil
}

// SubscribeBookAdded registers a subscriber whose channel closes when ctx
// is cancelled.
func (b *MemoryBroker) SubscribeBookAdded(ctx context.Context) (<-chan store.Book, error) {
	id := uuid.NewString()
	ch := make(chan store.Book, subscriberBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Subscribers returns the number of active subscribers
func (b *MemoryBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
