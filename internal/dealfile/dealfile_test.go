package dealfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kierki.dev/kierki/internal/card"
)

func fullDeckLines() []string {
	// Deals out the whole 52-card deck across N, E, S, W in a fixed, valid split.
	return []string{
		"2HKHQHJH10H9H8H7H6H5H4H3HAH",
		"2DKDQDJD10D9D8D7D6D5D4D3DAD",
		"2CKCQCJC10C9C8C7C6C5C4C3CAC",
		"2SKSQSJS10S9S8S7S6S5S4S3SAS",
	}
}

func TestParseSingleDeal(t *testing.T) {
	lines := append([]string{"1N"}, fullDeckLines()...)
	deals, err := Parse(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, card.DealTricks, deals[0].Type)
	assert.Equal(t, card.North, deals[0].Opener)
	assert.Len(t, deals[0].Hands[card.North], 13)
}

func TestParseMultipleDeals(t *testing.T) {
	lines := append([]string{"1N"}, fullDeckLines()...)
	lines = append(lines, "7E")
	lines = append(lines, fullDeckLines()...)
	deals, err := Parse(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, card.DealBandit, deals[1].Type)
	assert.Equal(t, card.East, deals[1].Opener)
}

func TestParseRejectsDuplicateCardAcrossHands(t *testing.T) {
	lines := []string{
		"1N",
		"2HKHQHJH10H9H8H7H6H5H4H3HAH",
		"2HKDQDJD10D9D8D7D6D5D4D3DAD",
		"2CKCQCJC10C9C8C7C6C5C4C3CAC",
		"2SKSQSJS10S9S8S7S6S5S4S3SAS",
	}
	_, err := Parse(strings.NewReader(strings.Join(lines, "\n")))
	assert.Error(t, err)
}

func TestParseRejectsShortHand(t *testing.T) {
	lines := []string{
		"1N",
		"2HKHQHJH10H9H8H7H6H5H4H3H",
		"2DKDQDJD10D9D8D7D6D5D4D3DAD",
		"2CKCQCJC10C9C8C7C6C5C4C3CAC",
		"2SKSQSJS10S9S8S7S6S5S4S3SAS",
	}
	_, err := Parse(strings.NewReader(strings.Join(lines, "\n")))
	assert.Error(t, err)
}

func TestParseRejectsEmptySchedule(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)
}
