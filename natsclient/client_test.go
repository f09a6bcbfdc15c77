package natsclient

import (
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/bookshelf/errors"
)

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{ConnectionStatus(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(nats.DefaultURL)
	require.NoError(t, err)

	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsConnected())
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, 2*time.Second, c.reconnectWait)
	assert.Equal(t, "bookshelf", c.clientName)
}

func TestNewClientOptions(t *testing.T) {
	c, err := NewClient(nats.DefaultURL,
		WithMaxReconnects(5),
		WithReconnectWait(500*time.Millisecond),
		WithPingInterval(10*time.Second),
		WithTimeout(time.Second),
		WithClientName("bookshelf-test"),
		WithLogger(slog.Default()),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, c.maxReconnects)
	assert.Equal(t, 500*time.Millisecond, c.reconnectWait)
	assert.Equal(t, 10*time.Second, c.pingInterval)
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, "bookshelf-test", c.clientName)
}

func TestPublishWithoutConnection(t *testing.T) {
	c, err := NewClient(nats.DefaultURL)
	require.NoError(t, err)

	err = c.Publish("bookshelf.test", []byte("payload"))
	assert.ErrorIs(t, err, errors.ErrNoConnection)
}

func TestChanSubscribeWithoutConnection(t *testing.T) {
	c, err := NewClient(nats.DefaultURL)
	require.NoError(t, err)

	_, err = c.ChanSubscribe("bookshelf.test", make(chan *nats.Msg, 1))
	assert.ErrorIs(t, err, errors.ErrNoConnection)
}

func TestPruneDropsDeadSubscriptions(t *testing.T) {
	c, err := NewClient(nats.DefaultURL)
	require.NoError(t, err)

	// A zero-value subscription reports invalid, like one whose owner has
	// already called Unsubscribe
	c.subs = []*nats.Subscription{{}, {}, {}}

	c.mu.Lock()
	c.pruneSubsLocked()
	c.mu.Unlock()

	assert.Empty(t, c.subs)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewClient(nats.DefaultURL)
	require.NoError(t, err)

	c.Close()
	c.Close()
	assert.Equal(t, StatusDisconnected, c.Status())
}
