// Package connio implements the per-connection non-blocking I/O discipline from
// spec.md §4.2: a read queue, a write queue, closed/drained flags, and an "awaiting a
// specific reply" latch with a deadline. Go's runtime already multiplexes blocking
// net.Conn reads and writes efficiently, so rather than hand-roll poll()-style
// readiness checking over raw file descriptors (REDESIGN FLAGS in SPEC_FULL.md), each
// Connection runs one reader goroutine and one writer goroutine and communicates with
// the single match-loop goroutine over channels — the same "exactly one goroutine
// mutates shared state" guarantee spec.md §5 requires, reached by Go-idiomatic means.
package connio

// MaxLineLength is the maximum octet length of one wire line, CRLF included, per
// spec.md §4.2/§6.
const MaxLineLength = 50

// ExtractLine implements Connection.extract_line() from spec.md §4.2 as a pure
// function over a byte buffer, so the framing logic can be tested without a socket.
//
// It returns the next complete line (CRLF included) if one is present within the
// first MaxLineLength bytes of buf, the unconsumed remainder, and ok=true. If no
// CRLF appears within the first MaxLineLength bytes, it consumes exactly
// MaxLineLength bytes and returns them as an (intentionally terminator-less, hence
// malformed) line — the decoder will reject it for lacking a CRLF, which is how an
// oversized prefix surfaces as "malformed" rather than being silently dropped. If
// fewer than MaxLineLength bytes are buffered and no CRLF has appeared yet, it
// returns ok=false so the caller keeps accumulating.
func ExtractLine(buf []byte) (line []byte, rest []byte, ok bool) {
	limit := len(buf)
	if limit > MaxLineLength {
		limit = MaxLineLength
	}

	for i := 1; i < limit; i++ {
		if buf[i-1] == '\r' && buf[i] == '\n' {
			return buf[:i+1], buf[i+1:], true
		}
	}

	if len(buf) >= MaxLineLength {
		return buf[:MaxLineLength], buf[MaxLineLength:], true
	}

	return nil, buf, false
}
