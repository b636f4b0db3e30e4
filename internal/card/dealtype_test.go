package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustCard(t *testing.T, figure string, suit Suit) Card {
	c, err := New(figure, suit)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestTrickScoreBandit(t *testing.T) {
	cards := [4]Card{
		mustCard(t, "K", Hearts),
		mustCard(t, "Q", Spades),
		mustCard(t, "J", Clubs),
		mustCard(t, "2", Hearts),
	}
	// rule1: +1, rule2: 2 hearts +2, rule3: 1 queen +5, rule4: J and K +4, rule5: KH +18
	// rule6: trick 7 -> +10
	got := TrickScore(DealBandit, cards, 7)
	assert.Equal(t, 1+2+5+4+18+10, got)
}

func TestTrickScoreSeventhLastBoundary(t *testing.T) {
	cards := [4]Card{
		mustCard(t, "2", Spades), mustCard(t, "3", Spades),
		mustCard(t, "4", Spades), mustCard(t, "5", Spades),
	}
	assert.Equal(t, 0, TrickScore(DealSeventhLast, cards, 6))
	assert.Equal(t, 10, TrickScore(DealSeventhLast, cards, 7))
	assert.Equal(t, 10, TrickScore(DealSeventhLast, cards, 13))
	assert.Equal(t, 0, TrickScore(DealSeventhLast, cards, 8))
}

func TestParseDealTypeRange(t *testing.T) {
	_, err := ParseDealType("0")
	assert.Error(t, err)
	_, err = ParseDealType("8")
	assert.Error(t, err)
	dt, err := ParseDealType("7")
	assert.NoError(t, err)
	assert.Equal(t, DealBandit, dt)
}
