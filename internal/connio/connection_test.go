package connio

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kierki.dev/kierki/internal/applog"
)

func pipePair(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	c := New(server, applog.Nop(), nil)
	t.Cleanup(c.Close)
	return c, client
}

func TestConnectionDeliversLines(t *testing.T) {
	c, client := pipePair(t)

	go func() {
		_, _ = client.Write([]byte("IAMN\r\n"))
	}()

	select {
	case ev := <-c.Events():
		require.NoError(t, ev.Err)
		assert.Equal(t, "IAMN\r\n", ev.Line)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestConnectionSendWritesToPeer(t *testing.T) {
	c, client := pipePair(t)
	reader := bufio.NewReader(client)

	require.NoError(t, c.Send("BUSYN\r\n"))

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "BUSYN\r\n", line)
}

func TestConnectionEmitsEOFOnPeerClose(t *testing.T) {
	c, client := pipePair(t)
	_ = client.Close()

	select {
	case ev := <-c.Events():
		assert.Error(t, ev.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for EOF event")
	}
}

func TestAwaitingLatchTracksDeadline(t *testing.T) {
	c, _ := pipePair(t)
	assert.Nil(t, c.AwaitingState())
	assert.False(t, c.IsTimedOut(time.Now()))

	c.SetAwaiting(&Awaiting{TrickNumber: 3, Deadline: time.Now().Add(-time.Second)})
	assert.True(t, c.IsTimedOut(time.Now()))

	c.SetAwaiting(&Awaiting{TrickNumber: 3, Deadline: time.Now().Add(time.Hour)})
	assert.False(t, c.IsTimedOut(time.Now()))
}

func TestInboundRateLimiterAllowsUpToMaxPerWindow(t *testing.T) {
	l := NewInboundRateLimiter(3)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestInboundRateLimiterResetsAfterWindow(t *testing.T) {
	l := NewInboundRateLimiter(1)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	l.windowEnd = time.Now().Add(-time.Millisecond)
	assert.True(t, l.Allow())
}
