package connio

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"kierki.dev/kierki/internal/applog"
)

// Event is delivered on Connection.Events() whenever the reader goroutine extracts
// a line or the underlying socket goes away. Exactly one of Line/Err is set.
type Event struct {
	Line string // CRLF-terminated wire line, present when Err == nil
	Err  error  // non-nil once the connection has failed or been closed
}

// Awaiting is the "awaiting a specific reply" latch from spec.md §4.2: the deadline
// by which a reply is expected, plus a trick number for a TRICK reply. The latch only
// records the deadline for IsTimedOut; it does not filter incoming lines. The server
// loop sets it on accept as the IAM deadline and clears it once the seat is claimed.
type Awaiting struct {
	TrickNumber int
	Deadline    time.Time
}

// InboundRateLimiter throttles how many lines one connection may send per
// second, grounded on the teacher's hand-rolled sliding-window RateLimiter
// (internal/network/server/security.go) rather than a third-party token
// bucket: the teacher's own rate limiting never reaches for a library. Like
// the teacher's limiter, it counts every inbound line, not just malformed
// ones — a connection that floods the server with otherwise well-formed
// traffic is throttled the same as one sending garbage.
type InboundRateLimiter struct {
	max    int
	window time.Duration

	mu        sync.Mutex
	count     int
	windowEnd time.Time
}

// NewInboundRateLimiter returns a limiter that allows up to maxPerSecond
// calls to Allow per fixed one-second window. A window starts at the first
// call after the previous one has expired, so calls on both sides of a window
// boundary are counted separately.
func NewInboundRateLimiter(maxPerSecond int) *InboundRateLimiter {
	return &InboundRateLimiter{max: maxPerSecond, window: time.Second}
}

// Allow reports whether one more line may be accepted right now.
func (l *InboundRateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.windowEnd.IsZero() || now.After(l.windowEnd) {
		l.count = 0
		l.windowEnd = now.Add(l.window)
	}
	l.count++
	return l.count <= l.max
}

// Connection wraps one net.Conn with the read/write queues and closed/drained flags
// spec.md §4.2 assigns to a connection, realized as two goroutines (reader, writer)
// that never touch match state directly — they only move bytes and lines across
// channels to and from the single goroutine that owns the match. That goroutine is
// the only place Awaiting and drained/closed bookkeeping are actually interpreted;
// Connection merely carries them. Grounded on the teacher's Client.ReadPump/WritePump
// split (internal/network/server/client.go), with the websocket frame replaced by
// the line-extraction loop spec.md §4.1 requires.
type Connection struct {
	ID     uuid.UUID
	Seat   string // human-readable label for logging only; not a card.Seat, and left empty by New
	conn   net.Conn
	logger *applog.Logger

	events  chan Event
	outbox  chan string
	limiter *InboundRateLimiter

	mu           sync.Mutex
	awaiting     *Awaiting
	readDrained  bool
	writeDrained bool
	closed       bool
	closeOnce    sync.Once
	done         chan struct{}
}

// New wraps conn and starts its reader and writer goroutines. limiter throttles how
// fast lines of any kind may arrive from this connection before it is torn down;
// pass nil to disable throttling (used in tests).
func New(conn net.Conn, logger *applog.Logger, limiter *InboundRateLimiter) *Connection {
	c := &Connection{
		ID:      uuid.New(),
		conn:    conn,
		logger:  logger,
		events:  make(chan Event, 16),
		outbox:  make(chan string, 16),
		limiter: limiter,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

// RemoteAddr returns the peer's address:port, used only for wire-event logging.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// LocalAddr returns this end's address:port, used only for wire-event logging.
func (c *Connection) LocalAddr() string {
	return c.conn.LocalAddr().String()
}

// Events returns the channel of lines (or the terminal error) read from this
// connection. The match loop selects on this channel alongside every other
// connection's Events() and its own timers — spec.md §5's single-mutator rule.
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Send enqueues line for delivery. It never blocks on the network; if the outbox
// is full the connection is considered unresponsive and is closed, matching
// spec.md §4.2's write_drained semantics (a peer that stops reading eventually
// gets disconnected rather than backing up the server indefinitely).
func (c *Connection) Send(line string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("connio: send on closed connection")
	}
	c.mu.Unlock()

	select {
	case c.outbox <- line:
		return nil
	default:
		c.Close()
		return errors.New("connio: outbox full, connection closed")
	}
}

// SetAwaiting installs or clears the "awaiting a specific reply" latch.
func (c *Connection) SetAwaiting(a *Awaiting) {
	c.mu.Lock()
	c.awaiting = a
	c.mu.Unlock()
}

// AwaitingState reports the current latch, or nil if the connection isn't waiting on
// anything in particular right now.
func (c *Connection) AwaitingState() *Awaiting {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// IsTimedOut reports whether the current Awaiting latch's deadline has passed.
func (c *Connection) IsTimedOut(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting != nil && now.After(c.awaiting.Deadline)
}

// Close shuts the connection down. Safe to call more than once and from any
// goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Connection) readLoop() {
	defer c.Close()

	buf := make([]byte, 0, MaxLineLength*2)
	chunk := make([]byte, 512)
	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				line, rest, ok := ExtractLine(buf)
				if !ok {
					break
				}
				buf = rest
				if c.limiter != nil && !c.limiter.Allow() {
					c.emit(Event{Err: errors.New("connio: inbound line rate limit exceeded")})
					return
				}
				c.emit(Event{Line: string(line)})
			}
		}
		if err != nil {
			c.mu.Lock()
			c.readDrained = true
			c.mu.Unlock()
			if !errors.Is(err, io.EOF) {
				c.emit(Event{Err: fmt.Errorf("connio: read: %w", err)})
			} else {
				c.emit(Event{Err: io.EOF})
			}
			return
		}
	}
}

func (c *Connection) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case line, ok := <-c.outbox:
			if !ok {
				return
			}
			if _, err := io.WriteString(c.conn, line); err != nil {
				c.mu.Lock()
				c.writeDrained = true
				c.mu.Unlock()
				if c.logger != nil {
					c.logger.Debugf("connio: write failed, closing connection: %v", err)
				}
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
