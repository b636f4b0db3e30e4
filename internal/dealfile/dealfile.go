// Package dealfile loads the fixed deal schedule a match plays from: one line of
// "<deal type><opening seat>" followed by four lines of hand, one per seat in
// table order (North, East, South, West), repeated for every deal in the match.
// This is the format server-game-state.cpp's constructor reads in the reference
// implementation, kept unchanged since spec.md treats the schedule file as an
// externally-fixed input, not something the protocol itself describes.
package dealfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"kierki.dev/kierki/internal/card"
)

// Deal is one scheduled deal: its scoring type, the seat that leads the first
// trick, and the starting 13-card hand dealt to each seat.
type Deal struct {
	Type   card.DealType
	Opener card.Seat
	Hands  map[card.Seat][]card.Card
}

// Load reads a deal schedule from path.
func Load(path string) ([]Deal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dealfile: open: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a deal schedule from r.
func Parse(r io.Reader) ([]Deal, error) {
	scanner := bufio.NewScanner(r)
	var deals []Deal

	for {
		header, ok, err := nextLine(scanner)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if len(header) < 2 {
			return nil, fmt.Errorf("dealfile: malformed deal header %q", header)
		}
		dealType, err := card.ParseDealType(header[:1])
		if err != nil {
			return nil, fmt.Errorf("dealfile: deal %d header: %w", len(deals)+1, err)
		}
		opener, err := card.ParseSeat(header[1:2])
		if err != nil {
			return nil, fmt.Errorf("dealfile: deal %d header: %w", len(deals)+1, err)
		}

		hands := make(map[card.Seat][]card.Card, 4)
		for _, seat := range card.Order {
			line, ok, err := nextLine(scanner)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("dealfile: deal %d: unexpected end of file reading seat %s's hand", len(deals)+1, seat)
			}
			cards, err := card.ParseCardList(line)
			if err != nil {
				return nil, fmt.Errorf("dealfile: deal %d: seat %s hand: %w", len(deals)+1, seat, err)
			}
			if len(cards) != 13 {
				return nil, fmt.Errorf("dealfile: deal %d: seat %s hand has %d cards, want 13", len(deals)+1, seat, len(cards))
			}
			hands[seat] = cards
		}

		if err := requireFullDeck(hands); err != nil {
			return nil, fmt.Errorf("dealfile: deal %d: %w", len(deals)+1, err)
		}

		deals = append(deals, Deal{Type: dealType, Opener: opener, Hands: hands})
	}

	if len(deals) == 0 {
		return nil, errors.New("dealfile: schedule is empty")
	}
	return deals, nil
}

func nextLine(scanner *bufio.Scanner) (string, bool, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", false, fmt.Errorf("dealfile: read: %w", err)
		}
		return "", false, nil
	}
	return scanner.Text(), true, nil
}

func requireFullDeck(hands map[card.Seat][]card.Card) error {
	seen := make(map[card.Card]card.Seat, 52)
	for seat, cards := range hands {
		for _, c := range cards {
			if prior, ok := seen[c]; ok {
				return fmt.Errorf("card %s dealt to both %s and %s", c, prior, seat)
			}
			seen[c] = seat
		}
	}
	if len(seen) != 52 {
		return fmt.Errorf("deck has %d distinct cards across all hands, want 52", len(seen))
	}
	return nil
}
