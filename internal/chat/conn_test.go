package chat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servimatch/chatwire/internal/config"
	"github.com/servimatch/chatwire/internal/protocol"
	"github.com/servimatch/chatwire/internal/stub"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 2, Delay: 20 * time.Millisecond, HandshakeTimeout: 2 * time.Second}
}

func startStub(t *testing.T, token string) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(stub.NewServer(config.StubConfig{
		Token:           token,
		JanitorSchedule: "@every 5m",
		IdleTTLMinutes:  60,
	}).Handler())
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func nextEvent(t *testing.T, c *Conn, want EventType) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event type %d", want)
		}
	}
}

func TestConnectJoinsAndReceivesHistory(t *testing.T) {
	_, wsURL := startStub(t, "tok")
	c := NewConn(wsURL, "tok", fastRetry())
	defer c.Teardown()

	require.NoError(t, c.Connect(context.Background(), 7))
	assert.Equal(t, Connected, c.State())
	assert.Equal(t, int64(7), c.SessionID())

	ev := nextEvent(t, c, EventHistory)
	assert.Empty(t, ev.History, "fresh session starts with empty history")
	assert.False(t, c.Log().Loading())
}

func TestSendReceivesOwnEcho(t *testing.T) {
	_, wsURL := startStub(t, "tok")
	c := NewConn(wsURL, "tok", fastRetry())
	defer c.Teardown()

	require.NoError(t, c.Connect(context.Background(), 7))
	nextEvent(t, c, EventHistory)

	frame, err := protocol.NewFrame(protocol.EventMessage, protocol.OutgoingMessage{
		SessionID: 7,
		Content:   "good morning",
	})
	require.NoError(t, err)
	require.NoError(t, c.SendFrame(frame))

	ev := nextEvent(t, c, EventMessage)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "good morning", ev.Message.Content)
	assert.Positive(t, ev.Message.ID, "echo carries the server-assigned id")
	assert.Equal(t, 1, c.Log().Len())
}

func TestConnectWithoutCredential(t *testing.T) {
	_, wsURL := startStub(t, "tok")
	c := NewConn(wsURL, "", fastRetry())

	err := c.Connect(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, Disconnected, c.State())
}

func TestInvalidTokenSurfacesProtocolError(t *testing.T) {
	_, wsURL := startStub(t, "secret")
	c := NewConn(wsURL, "wrong", fastRetry())
	defer c.Teardown()

	require.NoError(t, c.Connect(context.Background(), 7))

	ev := nextEvent(t, c, EventError)
	var perr *ProtocolError
	require.ErrorAs(t, ev.Err, &perr)
	assert.Contains(t, perr.Message, "invalid token")
}

func TestTeardownIdempotent(t *testing.T) {
	_, wsURL := startStub(t, "tok")
	c := NewConn(wsURL, "tok", fastRetry())

	require.NoError(t, c.Connect(context.Background(), 7))
	nextEvent(t, c, EventHistory)

	c.Teardown()
	c.Teardown()
	assert.Equal(t, Disconnected, c.State())
	assert.Zero(t, c.Log().Len())
	assert.True(t, c.Log().Loading())
}

func TestSwitchingSessionsTearsDownPrevious(t *testing.T) {
	_, wsURL := startStub(t, "tok")
	c := NewConn(wsURL, "tok", fastRetry())
	defer c.Teardown()

	require.NoError(t, c.Connect(context.Background(), 7))
	nextEvent(t, c, EventHistory)

	frame, err := protocol.NewFrame(protocol.EventMessage, protocol.OutgoingMessage{SessionID: 7, Content: "old session"})
	require.NoError(t, err)
	require.NoError(t, c.SendFrame(frame))
	nextEvent(t, c, EventMessage)

	require.NoError(t, c.Connect(context.Background(), 8))
	nextEvent(t, c, EventHistory)

	assert.Equal(t, int64(8), c.SessionID())
	assert.Zero(t, c.Log().Len(), "log never leaks across sessions")
}

func TestSendWhileDisconnected(t *testing.T) {
	_, wsURL := startStub(t, "tok")
	c := NewConn(wsURL, "tok", fastRetry())

	frame, err := protocol.NewFrame(protocol.EventMessage, protocol.OutgoingMessage{SessionID: 7, Content: "x"})
	require.NoError(t, err)

	err = c.SendFrame(frame)
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestReconnectExhaustionParksErrored(t *testing.T) {
	srv, wsURL := startStub(t, "tok")
	c := NewConn(wsURL, "tok", fastRetry())
	defer c.Teardown()

	require.NoError(t, c.Connect(context.Background(), 7))
	nextEvent(t, c, EventHistory)

	// Kill the counterpart: bounded reconnection, then exactly one error.
	srv.Close()

	ev := nextEvent(t, c, EventError)
	var cerr *ConnectionError
	require.ErrorAs(t, ev.Err, &cerr)

	require.Eventually(t, func() bool { return c.State() == Errored }, 3*time.Second, 10*time.Millisecond)
}

func TestDialFailureReturnsConnectionError(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", "tok", fastRetry())
	err := c.Connect(context.Background(), 7)
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, Errored, c.State())
}
