package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360/bookshelf/errors"
	"github.com/c360/bookshelf/natsclient"
	"github.com/c360/bookshelf/store"
)

// NATSBroker distributes book-added events over a NATS subject, so every
// process in a deployment sees mutations made by any other.
type NATSBroker struct {
	client  *natsclient.Client
	subject string
	logger  *slog.Logger
}

// NewNATSBroker creates a broker on the given subject
func NewNATSBroker(client *natsclient.Client, subject string, logger *slog.Logger) *NATSBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSBroker{
		client:  client,
		subject: subject,
		logger:  logger,
	}
}

// PublishBookAdded publishes the book as JSON on the broker subject
func (b *NATSBroker) PublishBookAdded(_ context.Context, book store.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return errors.WrapInvalid(err, "NATSBroker", "PublishBookAdded", "marshal event")
	}
	if err := b.client.Publish(b.subject, data); err != nil {
		return errors.WrapTransient(err, "NATSBroker", "PublishBookAdded", "publish event")
	}
	return nil
}

// SubscribeBookAdded subscribes to the broker subject and decodes events
// into a channel that closes when ctx is cancelled.
func (b *NATSBroker) SubscribeBookAdded(ctx context.Context) (<-chan store.Book, error) {
	msgs := make(chan *nats.Msg, subscriberBuffer)
	sub, err := b.client.ChanSubscribe(b.subject, msgs)
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSBroker", "SubscribeBookAdded", "subscribe")
	}

	out := make(chan store.Book, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Unsubscribe(); err != nil {
				b.logger.Warn("unsubscribe failed", "subject", b.subject, "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var book store.Book
				if err := json.Unmarshal(msg.Data, &book); err != nil {
					b.logger.Warn("dropping undecodable event", "subject", b.subject, "error", err)
					continue
				}
				select {
				case out <- book:
				case <-ctx.Done():
					return
				default:
					// Subscriber is not draining; drop rather than block
					b.logger.Warn("dropping event for slow subscriber", "subject", b.subject)
				}
			}
		}
	}()

	return out, nil
}
