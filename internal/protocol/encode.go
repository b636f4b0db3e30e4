package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"kierki.dev/kierki/internal/card"
)

// Encode renders m into its canonical CRLF-terminated wire form. Encode is the
// inverse of Decode: Decode(Encode(m)) == m for every legal m.
func Encode(m Message) (string, error) {
	var body string
	var err error

	switch msg := m.(type) {
	case IAM:
		body, err = encodeIAM(msg)
	case Busy:
		body, err = encodeBusy(msg)
	case Deal:
		body, err = encodeDeal(msg)
	case Trick:
		body, err = encodeTrick(msg)
	case Wrong:
		body, err = encodeWrong(msg)
	case Taken:
		body, err = encodeTaken(msg)
	case Score:
		body, err = encodeScoreLike(TagSCORE, msg.Points)
	case Total:
		body, err = encodeScoreLike(TagTOTAL, msg.Points)
	default:
		return "", fmt.Errorf("encode: unknown message type %T", m)
	}
	if err != nil {
		return "", err
	}

	line := body + crlf
	if len(line) > MaxLineLength {
		return "", fmt.Errorf("encode: line would exceed %d octets: %q", MaxLineLength, line)
	}
	return line, nil
}

func encodeIAM(m IAM) (string, error) {
	if !m.Seat.Valid() {
		return "", fmt.Errorf("IAM: invalid seat %v", m.Seat)
	}
	return string(TagIAM) + m.Seat.String(), nil
}

func encodeBusy(m Busy) (string, error) {
	if len(m.Seats) < 1 || len(m.Seats) > 4 {
		return "", fmt.Errorf("BUSY: expected 1..4 seats, got %d", len(m.Seats))
	}
	seen := make(map[card.Seat]bool, len(m.Seats))
	var sb strings.Builder
	sb.WriteString(string(TagBUSY))
	for _, seat := range m.Seats {
		if !seat.Valid() {
			return "", fmt.Errorf("BUSY: invalid seat %v", seat)
		}
		if seen[seat] {
			return "", fmt.Errorf("BUSY: duplicate seat %s", seat)
		}
		seen[seat] = true
		sb.WriteString(seat.String())
	}
	return sb.String(), nil
}

func encodeDeal(m Deal) (string, error) {
	if !m.Type.Valid() {
		return "", fmt.Errorf("DEAL: invalid deal type %v", m.Type)
	}
	if !m.Opener.Valid() {
		return "", fmt.Errorf("DEAL: invalid opener %v", m.Opener)
	}
	if len(m.Cards) != 13 {
		return "", fmt.Errorf("DEAL: expected exactly 13 cards, got %d", len(m.Cards))
	}
	if err := requireDistinct(m.Cards); err != nil {
		return "", fmt.Errorf("DEAL: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(string(TagDEAL))
	sb.WriteString(m.Type.String())
	sb.WriteString(m.Opener.String())
	writeCards(&sb, m.Cards)
	return sb.String(), nil
}

func encodeTrick(m Trick) (string, error) {
	if m.Number < 1 || m.Number > 13 {
		return "", fmt.Errorf("TRICK: trick number %d out of range", m.Number)
	}
	if len(m.Cards) > 3 {
		return "", fmt.Errorf("TRICK: too many cards (%d)", len(m.Cards))
	}
	if err := requireDistinct(m.Cards); err != nil {
		return "", fmt.Errorf("TRICK: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(string(TagTRICK))
	sb.WriteString(strconv.Itoa(m.Number))
	writeCards(&sb, m.Cards)
	return sb.String(), nil
}

func encodeWrong(m Wrong) (string, error) {
	if m.Number < 1 || m.Number > 13 {
		return "", fmt.Errorf("WRONG: trick number %d out of range", m.Number)
	}
	return string(TagWRONG) + strconv.Itoa(m.Number), nil
}

func encodeTaken(m Taken) (string, error) {
	if m.Number < 1 || m.Number > 13 {
		return "", fmt.Errorf("TAKEN: trick number %d out of range", m.Number)
	}
	if !m.TakenBy.Valid() {
		return "", fmt.Errorf("TAKEN: invalid seat %v", m.TakenBy)
	}
	if err := requireDistinct(m.Cards[:]); err != nil {
		return "", fmt.Errorf("TAKEN: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(string(TagTAKEN))
	sb.WriteString(strconv.Itoa(m.Number))
	writeCards(&sb, m.Cards[:])
	sb.WriteString(m.TakenBy.String())
	return sb.String(), nil
}

func encodeScoreLike(tag Tag, points map[card.Seat]int) (string, error) {
	if len(points) != 4 {
		return "", fmt.Errorf("%s: expected exactly 4 seats, got %d", tag, len(points))
	}
	var sb strings.Builder
	sb.WriteString(string(tag))
	for _, seat := range card.Order {
		value, ok := points[seat]
		if !ok {
			return "", fmt.Errorf("%s: missing seat %s", tag, seat)
		}
		if value < 0 {
			return "", fmt.Errorf("%s: negative score for seat %s", tag, seat)
		}
		sb.WriteString(seat.String())
		sb.WriteString(strconv.Itoa(value))
	}
	return sb.String(), nil
}

func writeCards(sb *strings.Builder, cards []card.Card) {
	for _, c := range cards {
		sb.WriteString(c.String())
	}
}

func requireDistinct(cards []card.Card) error {
	seen := make(map[card.Card]bool, len(cards))
	for _, c := range cards {
		if seen[c] {
			return fmt.Errorf("duplicate card %s", c)
		}
		seen[c] = true
	}
	return nil
}
