package protocol

import (
	"strconv"
	"strings"

	"kierki.dev/kierki/internal/card"
)

const crlf = "\r\n"

// Decode parses one complete wire line, CRLF terminator included, into a Message.
// It never returns anything other than *DecodeError on failure, per spec.md §4.1:
// decode failure is always "malformed," never fatal at the transport layer.
func Decode(line string) (Message, error) {
	body, err := stripTerminator(line)
	if err != nil {
		return nil, err
	}

	tag, rest, err := splitTag(body)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagIAM:
		return decodeIAM(rest)
	case TagBUSY:
		return decodeBusy(rest)
	case TagDEAL:
		return decodeDeal(rest)
	case TagTRICK:
		return decodeTrick(rest)
	case TagWRONG:
		return decodeWrong(rest)
	case TagTAKEN:
		return decodeTaken(rest)
	case TagSCORE:
		return decodeScoreLike(rest, TagSCORE)
	case TagTOTAL:
		return decodeScoreLike(rest, TagTOTAL)
	default:
		return nil, malformed("unknown tag %q", tag)
	}
}

func stripTerminator(line string) (string, error) {
	if len(line) > MaxLineLength {
		return "", malformed("line exceeds %d octets", MaxLineLength)
	}
	if !strings.HasSuffix(line, crlf) {
		return "", malformed("line does not end in CRLF")
	}
	body := line[:len(line)-2]
	if strings.Contains(body, "\r") || strings.Contains(body, "\n") {
		return "", malformed("line contains an embedded CRLF")
	}
	return body, nil
}

func splitTag(body string) (Tag, string, error) {
	for _, tag := range tagsLongestFirst {
		if strings.HasPrefix(body, string(tag)) {
			return tag, body[len(tag):], nil
		}
	}
	return "", "", malformed("unrecognized message tag in %q", body)
}

func decodeIAM(rest string) (Message, error) {
	if len(rest) != 1 {
		return nil, malformed("IAM: expected exactly one seat, got %q", rest)
	}
	seat, err := card.ParseSeat(rest)
	if err != nil {
		return nil, malformed("IAM: %s", err)
	}
	return IAM{Seat: seat}, nil
}

func decodeBusy(rest string) (Message, error) {
	if len(rest) < 1 || len(rest) > 4 {
		return nil, malformed("BUSY: expected 1..4 seats, got %q", rest)
	}
	seen := make(map[card.Seat]bool, len(rest))
	seats := make([]card.Seat, 0, len(rest))
	for i := 0; i < len(rest); i++ {
		seat, err := card.ParseSeat(rest[i : i+1])
		if err != nil {
			return nil, malformed("BUSY: %s", err)
		}
		if seen[seat] {
			return nil, malformed("BUSY: duplicate seat %s", seat)
		}
		seen[seat] = true
		seats = append(seats, seat)
	}
	return Busy{Seats: seats}, nil
}

func decodeDeal(rest string) (Message, error) {
	if len(rest) < 2 {
		return nil, malformed("DEAL: message too short")
	}
	dealType, err := card.ParseDealType(rest[:1])
	if err != nil {
		return nil, malformed("DEAL: %s", err)
	}
	opener, err := card.ParseSeat(rest[1:2])
	if err != nil {
		return nil, malformed("DEAL: %s", err)
	}
	cards, err := card.ParseCardList(rest[2:])
	if err != nil {
		return nil, malformed("DEAL: %s", err)
	}
	if len(cards) != 13 {
		return nil, malformed("DEAL: expected exactly 13 cards, got %d", len(cards))
	}
	return Deal{Type: dealType, Opener: opener, Cards: cards}, nil
}

// splitTrickNumber implements spec.md §4.1's ambiguity resolution: the trick number
// is 1 or 2 decimal digits directly adjacent to a card list that may itself start
// with a digit ("10..."). It tries the 1-digit split first and only falls back to
// the 2-digit split if the 1-digit split's remainder fails to parse as a clean,
// fully-consumed payload.
func splitTrickNumber(rest string, tryRemainder func(remainder string) bool) (number int, remainder string, ok bool) {
	if len(rest) >= 1 {
		n, err := strconv.Atoi(rest[:1])
		if err == nil && n >= 1 && n <= 13 {
			if tryRemainder(rest[1:]) {
				return n, rest[1:], true
			}
		}
	}
	if len(rest) >= 2 {
		n, err := strconv.Atoi(rest[:2])
		if err == nil && n >= 1 && n <= 13 {
			if tryRemainder(rest[2:]) {
				return n, rest[2:], true
			}
		}
	}
	return 0, "", false
}

func decodeTrick(rest string) (Message, error) {
	var cards []card.Card
	number, _, ok := splitTrickNumber(rest, func(remainder string) bool {
		cs, err := card.ParseCardList(remainder)
		if err != nil || len(cs) > 3 {
			return false
		}
		cards = cs
		return true
	})
	if !ok {
		return nil, malformed("TRICK: could not parse %q", rest)
	}
	return Trick{Number: number, Cards: cards}, nil
}

func decodeWrong(rest string) (Message, error) {
	if len(rest) < 1 {
		return nil, malformed("WRONG: missing trick number")
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return nil, malformed("WRONG: invalid trick number %q", rest)
	}
	if n < 1 || n > 13 {
		return nil, malformed("WRONG: trick number %d out of range", n)
	}
	return Wrong{Number: n}, nil
}

func decodeTaken(rest string) (Message, error) {
	var cards [4]card.Card
	number, remainder, ok := splitTrickNumber(rest, func(remainder string) bool {
		if len(remainder) < 1 {
			return false
		}
		cardsPart, _ := remainder[:len(remainder)-1], remainder[len(remainder)-1:]
		cs, err := card.ParseCardList(cardsPart)
		if err != nil || len(cs) != 4 {
			return false
		}
		copy(cards[:], cs)
		return true
	})
	if !ok {
		return nil, malformed("TAKEN: could not parse %q", rest)
	}
	takenBy, err := card.ParseSeat(remainder[len(remainder)-1:])
	if err != nil {
		return nil, malformed("TAKEN: %s", err)
	}
	return Taken{Number: number, Cards: cards, TakenBy: takenBy}, nil
}

func decodeScoreLike(rest string, tag Tag) (Message, error) {
	points := make(map[card.Seat]int, 4)
	i := 0
	for i < len(rest) {
		seat, err := card.ParseSeat(rest[i : i+1])
		if err != nil {
			return nil, malformed("%s: expected a seat at offset %d", tag, i)
		}
		if _, dup := points[seat]; dup {
			return nil, malformed("%s: seat %s appears more than once", tag, seat)
		}
		i++
		start := i
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == start {
			return nil, malformed("%s: missing integer after seat %s", tag, seat)
		}
		value, err := strconv.Atoi(rest[start:i])
		if err != nil || value < 0 {
			return nil, malformed("%s: invalid integer for seat %s", tag, seat)
		}
		points[seat] = value
	}
	for _, seat := range card.Order {
		if _, ok := points[seat]; !ok {
			return nil, malformed("%s: missing seat %s", tag, seat)
		}
	}
	if tag == TagSCORE {
		return Score{Points: points}, nil
	}
	return Total{Points: points}, nil
}
