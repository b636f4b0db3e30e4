package card

import (
	"fmt"
	"regexp"
)

// cardPattern mirrors original_source/common.cpp's greedy card-list regex: the figure
// alternation tries "10" before the single-character figures so "10H" is never split
// into "1" + "0H".
var cardPattern = regexp.MustCompile(`(10|[2-9JQKA])[HDCS]`)

// ParseCardList greedily matches cardPattern against s and requires the match set to
// consume the entire input with no leftover characters and no duplicate cards, per
// spec.md §4.1's card-list grammar.
func ParseCardList(s string) ([]Card, error) {
	matches := cardPattern.FindAllStringIndex(s, -1)
	consumed := 0
	cards := make([]Card, 0, len(matches))
	seen := make(map[Card]bool, len(matches))

	expectedStart := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start != expectedStart {
			return nil, fmt.Errorf("invalid card list %q: unmatched characters at offset %d", s, expectedStart)
		}
		token := s[start:end]
		figure, suit := figureFromToken(token)
		c, err := New(figure, suit)
		if err != nil {
			return nil, fmt.Errorf("invalid card list %q: %w", s, err)
		}
		if seen[c] {
			return nil, fmt.Errorf("invalid card list %q: duplicate card %s", s, c)
		}
		seen[c] = true
		cards = append(cards, c)
		consumed += end - start
		expectedStart = end
	}

	if consumed != len(s) {
		return nil, fmt.Errorf("invalid card list %q: leftover characters", s)
	}

	return cards, nil
}
