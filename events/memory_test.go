package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/bookshelf/store"
)

func testBook(title string) store.Book {
	return store.Book{
		ID:       primitive.NewObjectID(),
		Title:    title,
		AuthorID: primitive.NewObjectID(),
		Genres:   []string{"refactoring"},
	}
}

func TestMemoryBrokerFanout(t *testing.T) {
	broker := NewMemoryBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := broker.SubscribeBookAdded(ctx)
	require.NoError(t, err)
	second, err := broker.SubscribeBookAdded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, broker.Subscribers())

	book := testBook("Clean Code")
	require.NoError(t, broker.PublishBookAdded(ctx, book))

	for _, ch := range []<-chan store.Book{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, book.ID, got.ID)
			assert.Equal(t, "Clean Code", got.Title)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestMemoryBrokerNoReplay(t *testing.T) {
	broker := NewMemoryBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, broker.PublishBookAdded(ctx, testBook("Before")))

	ch, err := broker.SubscribeBookAdded(ctx)
	require.NoError(t, err)

	select {
	case got := <-ch:
		t.Fatalf("unexpected replayed event: %v", got.Title)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBrokerClosesOnCancel(t *testing.T) {
	broker := NewMemoryBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := broker.SubscribeBookAdded(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	assert.Eventually(t, func() bool {
		return broker.Subscribers() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryBrokerDropsWhenBufferFull(t *testing.T) {
	broker := NewMemoryBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := broker.SubscribeBookAdded(ctx)
	require.NoError(t, err)

	// Publish one past the buffer without draining
	for i := 0; i <= subscriberBuffer; i++ {
		require.NoError(t, broker.PublishBookAdded(ctx, testBook("Overflow")))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			assert.Equal(t, subscriberBuffer, received)
			return
		}
	}
}

func TestMemoryBrokerPublishWithoutSubscribers(t *testing.T) {
	broker := NewMemoryBroker(nil)
	assert.NoError(t, broker.PublishBookAdded(context.Background(), testBook("Nobody listens")))
}
