// Package events carries the book-added notifications from the addBook
// mutation to subscription clients. Delivery is fire-and-forget: there is
// no replay for late subscribers and no acknowledgment, and a subscriber
// that cannot keep up misses events rather than blocking the publisher.
package events

import (
	"context"

	"github.com/c360/bookshelf/store"
)

// subscriberBuffer is the per-subscriber channel depth. When the buffer is
// full the event is dropped for that subscriber.
const subscriberBuffer = 16

// Broker publishes and subscribes to book-added events
type Broker interface {
	// PublishBookAdded emits an event for a newly persisted book
	PublishBookAdded(ctx context.Context, book store.Book) error

	// SubscribeBookAdded returns a channel of book-added events.
	// The channel is closed when ctx is cancelled.
	SubscribeBookAdded(ctx context.Context) (<-chan store.Book, error)
}
