// Package clientloop is the client event loop from spec.md §4.6: it opens one
// Connection to the server, sends IAM immediately, and multiplexes the
// connection's Events() with standard input in interactive mode — grounded on
// kierki-klient.cpp's handle_messages/handle_user_input split, reworked as a
// single select loop over channels instead of a hand-rolled poll() set.
package clientloop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"kierki.dev/kierki/internal/applog"
	"kierki.dev/kierki/internal/card"
	"kierki.dev/kierki/internal/connio"
	"kierki.dev/kierki/internal/matchclient"
	"kierki.dev/kierki/internal/protocol"
)

// ErrBusy is returned when the server rejects this seat as already occupied —
// spec.md §4.6's "fatal on the client" BUSY handling.
var ErrBusy = errors.New("clientloop: seat is busy")

// Client drives one match participant end to end.
type Client struct {
	conn      *connio.Connection
	state     *matchclient.State
	automatic bool
	out       io.Writer
	logger    *applog.Logger
}

// Run dials nothing itself — it takes an already-connected net.Conn — sends
// IAM for seat, and drives the match until the connection ends or ctx is
// cancelled. stdin is only read when automatic is false. Output (deal/trick
// summaries, command replies) is written to out.
func Run(ctx context.Context, netConn net.Conn, seat card.Seat, automatic bool, stdin io.Reader, out io.Writer, logger *applog.Logger) error {
	c := &Client{
		conn:      connio.New(netConn, logger, nil),
		state:     matchclient.New(seat),
		automatic: automatic,
		out:       out,
		logger:    logger,
	}
	return c.run(ctx, stdin)
}

func (c *Client) run(ctx context.Context, stdin io.Reader) error {
	if err := c.send(protocol.IAM{Seat: c.state.Position()}); err != nil {
		return fmt.Errorf("clientloop: send IAM: %w", err)
	}

	var commands <-chan string
	if !c.automatic {
		lines := make(chan string)
		go scanLines(stdin, lines)
		commands = lines
	}

	for {
		select {
		case <-ctx.Done():
			c.conn.Close()
			return ctx.Err()
		case ev, ok := <-c.conn.Events():
			if !ok {
				return nil
			}
			if ev.Err != nil {
				return nil
			}
			if err := c.handleLine(ev.Line); err != nil {
				if errors.Is(err, ErrBusy) {
					c.conn.Close()
					return err
				}
				c.logger.Debugf("clientloop: malformed or rejected message: %v", err)
			}
		case input, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			c.handleCommand(input)
		}
	}
}

func (c *Client) handleLine(line string) error {
	applog.WireEvent(c.logger, "recv", c.conn.RemoteAddr(), c.conn.LocalAddr(), line)

	msg, err := protocol.Decode(line)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	switch m := msg.(type) {
	case protocol.Deal:
		if err := c.state.OnDeal(m); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "New deal %d: type %s, %s leads. Your cards: %s\n",
			c.state.DealNumber(), c.state.DealType(), c.state.StartingPlayer(), formatCards(c.state.Hand()))
	case protocol.Busy:
		fmt.Fprintf(c.out, "Seat busy; occupied seats: %s\n", formatSeats(m.Seats))
		return ErrBusy
	case protocol.Trick:
		if err := c.state.OnTrick(m); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Trick %d, cards so far: %s\n", m.Number, formatCards(m.Cards))
		if c.automatic && c.state.WaitingForMove() {
			return c.playBestMove()
		}
	case protocol.Wrong:
		fmt.Fprintf(c.out, "Wrong message received in trick %d.\n", m.Number)
	case protocol.Taken:
		if err := c.state.OnTaken(m); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Trick %d taken by %s: %s\n", m.Number, m.TakenBy, formatCards(m.Cards[:]))
	case protocol.Score:
		points, err := c.state.OnScore(m)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Deal score: %d\n", points)
	case protocol.Total:
		points, err := c.state.OnTotal(m)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Total score: %d\n", points)
	default:
		return fmt.Errorf("clientloop: unexpected message type %T", m)
	}
	return nil
}

func (c *Client) playBestMove() error {
	best, err := c.state.BestMove()
	if err != nil {
		return fmt.Errorf("clientloop: best move: %w", err)
	}
	return c.sendMove(best)
}

func (c *Client) handleCommand(input string) {
	switch {
	case input == "cards":
		fmt.Fprintf(c.out, "Your cards: %s\n", formatCards(c.state.Hand()))
	case input == "tricks":
		for i, t := range c.state.TakenTricks() {
			fmt.Fprintf(c.out, "Trick %d: %s\n", i+1, formatCards(t[:]))
		}
	case strings.HasPrefix(input, "!"):
		c.handlePlay(strings.TrimPrefix(input, "!"))
	}
}

func (c *Client) handlePlay(token string) {
	cards, err := card.ParseCardList(token)
	if err != nil || len(cards) != 1 {
		fmt.Fprintf(c.out, "Not a card: %q\n", token)
		return
	}
	played := cards[0]

	if !c.state.WaitingForMove() {
		fmt.Fprintln(c.out, "You cannot play a card now.")
		return
	}
	valid, err := c.state.IsValidMove(played)
	if err != nil || !valid {
		fmt.Fprintln(c.out, "You cannot play a card now.")
		return
	}
	if err := c.sendMove(played); err != nil {
		c.logger.Debugf("clientloop: send move failed: %v", err)
	}
}

func (c *Client) sendMove(played card.Card) error {
	if err := c.send(protocol.Trick{Number: c.state.CurrentTrick(), Cards: []card.Card{played}}); err != nil {
		return err
	}
	return nil
}

func (c *Client) send(msg protocol.Message) error {
	line, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	applog.WireEvent(c.logger, "send", c.conn.LocalAddr(), c.conn.RemoteAddr(), line)
	return c.conn.Send(line)
}

func scanLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out <- line
	}
}

func formatCards(cards []card.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func formatSeats(seats []card.Seat) string {
	parts := make([]string, len(seats))
	for i, s := range seats {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}
