package clientloop

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"kierki.dev/kierki/internal/applog"
	"kierki.dev/kierki/internal/card"
)

// safeBuffer lets the test poll output that the client goroutine writes
// concurrently, without racing on a bare bytes.Buffer.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, out *safeBuffer, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), substr) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for output containing %q, got %q", substr, out.String())
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestAutomaticClientRepliesToTrickPrompt(t *testing.T) {
	server, clientSide := net.Pipe()
	defer server.Close()
	serverReader := bufio.NewReader(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, clientSide, card.North, true, nil, &bytes.Buffer{}, applog.Nop())
	}()

	iam := readLine(t, serverReader)
	require.Equal(t, "IAMN\r\n", iam)

	_, err := server.Write([]byte("DEAL1N2H3H4H5H6H7H8H9H10HJHQHKHAH\r\n"))
	require.NoError(t, err)
	_, err = server.Write([]byte("TRICK1\r\n"))
	require.NoError(t, err)

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply := readLine(t, serverReader)
	require.Equal(t, "TRICK12H\r\n", reply, "leading with the smallest-rank card in hand")

	cancel()
	<-done
}

func TestInteractiveClientPlaysRequestedCard(t *testing.T) {
	server, clientSide := net.Pipe()
	defer server.Close()
	serverReader := bufio.NewReader(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdinR, stdinW := io.Pipe()
	defer stdinW.Close()
	out := &safeBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, clientSide, card.North, false, stdinR, out, applog.Nop())
	}()

	readLine(t, serverReader) // IAM

	_, err := server.Write([]byte("DEAL1N2H3H4H5H6H7H8H9H10HJHQHKHAH\r\n"))
	require.NoError(t, err)
	_, err = server.Write([]byte("TRICK1\r\n"))
	require.NoError(t, err)

	waitForOutput(t, out, "Trick 1, cards so far")
	_, err = stdinW.Write([]byte("!2H\n"))
	require.NoError(t, err)

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply := readLine(t, serverReader)
	require.Equal(t, "TRICK12H\r\n", reply)

	cancel()
	<-done
}

func TestBusyIsFatal(t *testing.T) {
	server, clientSide := net.Pipe()
	defer server.Close()
	serverReader := bufio.NewReader(server)

	out := &bytes.Buffer{}
	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), clientSide, card.East, true, nil, out, applog.Nop())
	}()

	readLine(t, serverReader) // IAM

	_, err := server.Write([]byte("BUSYN\r\n"))
	require.NoError(t, err)

	runErr := <-done
	require.ErrorIs(t, runErr, ErrBusy)
	require.Contains(t, out.String(), "busy")
}
