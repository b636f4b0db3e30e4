package serverloop

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kierki.dev/kierki/internal/applog"
	"kierki.dev/kierki/internal/card"
	"kierki.dev/kierki/internal/dealfile"
)

func testLogger() *applog.Logger {
	return applog.Nop()
}

func oneDealSchedule(t *testing.T, dealType card.DealType) []dealfile.Deal {
	t.Helper()
	return []dealfile.Deal{{
		Type:   dealType,
		Opener: card.North,
		Hands: map[card.Seat][]card.Card{
			card.North: hand(t, "2H", "3H", "4H", "5H", "6H", "7H", "8H", "9H", "10H", "JH", "QH", "KH", "AH"),
			card.East:  hand(t, "2D", "3D", "4D", "5D", "6D", "7D", "8D", "9D", "10D", "JD", "QD", "KD", "AD"),
			card.South: hand(t, "2C", "3C", "4C", "5C", "6C", "7C", "8C", "9C", "10C", "JC", "QC", "KC", "AC"),
			card.West:  hand(t, "2S", "3S", "4S", "5S", "6S", "7S", "8S", "9S", "10S", "JS", "QS", "KS", "AS"),
		},
	}}
}

func hand(t *testing.T, figures ...string) []card.Card {
	t.Helper()
	var out []card.Card
	for _, f := range figures {
		fig, suit := f[:len(f)-1], card.Suit(f[len(f)-1])
		c, err := card.New(fig, suit)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return line
}

func (c *testClient) expectPrefix(prefix string) string {
	c.t.Helper()
	line := c.readLine()
	require.Contains(c.t, line, prefix)
	return line
}

func startServer(t *testing.T, deals []dealfile.Deal) (addr string, stop func()) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(listener, deals, 2*time.Second, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()

	return listener.Addr().String(), func() {
		cancel()
		_ = listener.Close()
		<-done
	}
}

func TestFourSeatsPlayOneDealEndToEnd(t *testing.T) {
	addr, stop := startServer(t, oneDealSchedule(t, card.DealTricks))
	defer stop()

	seats := map[card.Seat]*testClient{}
	for _, seat := range card.Order {
		c := dial(t, addr)
		c.send("IAM" + seat.String())
		seats[seat] = c
	}

	for _, seat := range card.Order {
		seats[seat].expectPrefix("DEAL")
	}
	seats[card.North].expectPrefix("TRICK1")

	plays := map[card.Seat]string{
		card.North: "AH",
		card.East:  "AD",
		card.South: "AC",
		card.West:  "AS",
	}
	seat := card.North
	for i := 0; i < 4; i++ {
		seats[seat].send("TRICK1" + plays[seat])
		if i < 3 {
			seats[seat.Next()].expectPrefix("TRICK1")
		}
		seat = seat.Next()
	}

	for _, seat := range card.Order {
		seats[seat].expectPrefix("TAKEN1")
	}
}

func TestBusyRejectsDuplicateSeat(t *testing.T) {
	addr, stop := startServer(t, oneDealSchedule(t, card.DealTricks))
	defer stop()

	first := dial(t, addr)
	first.send("IAM" + card.North.String())

	second := dial(t, addr)
	second.send("IAM" + card.North.String())
	second.expectPrefix("BUSY")
}

func TestIllegalPlayReceivesWrong(t *testing.T) {
	addr, stop := startServer(t, oneDealSchedule(t, card.DealTricks))
	defer stop()

	seats := map[card.Seat]*testClient{}
	for _, seat := range card.Order {
		c := dial(t, addr)
		c.send("IAM" + seat.String())
		seats[seat] = c
	}
	for _, seat := range card.Order {
		seats[seat].expectPrefix("DEAL")
	}
	seats[card.North].expectPrefix("TRICK1")

	seats[card.East].send("TRICK1" + "2D")
	seats[card.East].expectPrefix("WRONG1")
}
