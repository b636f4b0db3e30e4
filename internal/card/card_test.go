package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesFigureAndSuit(t *testing.T) {
	_, err := New("10", Hearts)
	require.NoError(t, err)

	_, err = New("1", Hearts)
	assert.Error(t, err)

	_, err = New("K", Suit('X'))
	assert.Error(t, err)
}

func TestValue(t *testing.T) {
	cases := []struct {
		figure string
		want   int
	}{
		{"2", 2}, {"9", 9}, {"10", 10}, {"J", 11}, {"Q", 12}, {"K", 13}, {"A", 14},
	}
	for _, tc := range cases {
		c, err := New(tc.figure, Spades)
		require.NoError(t, err)
		assert.Equal(t, tc.want, c.Value())
	}
}

func TestString(t *testing.T) {
	c, err := New("10", Clubs)
	require.NoError(t, err)
	assert.Equal(t, "10C", c.String())
}

func TestBeats(t *testing.T) {
	ah, _ := New("A", Hearts)
	kh, _ := New("K", Hearts)
	as, _ := New("A", Spades)

	assert.True(t, Beats(ah, kh, Hearts), "higher card of same suit wins")
	assert.False(t, Beats(kh, ah, Hearts))
	assert.True(t, Beats(kh, as, Hearts), "lead-suit card beats an off-suit card")
	assert.False(t, Beats(as, kh, Hearts), "off-suit card never beats lead suit")

	q2, _ := New("2", Diamonds)
	q3, _ := New("3", Clubs)
	assert.False(t, Beats(q2, q3, Hearts), "neither off-suit card beats the other")
	assert.False(t, Beats(q3, q2, Hearts))
}

func TestRemove(t *testing.T) {
	ah, _ := New("A", Hearts)
	kh, _ := New("K", Hearts)
	hand := []Card{ah, kh}

	out, ok := Remove(hand, ah)
	require.True(t, ok)
	assert.Equal(t, []Card{kh}, out)

	_, ok = Remove(out, ah)
	assert.False(t, ok)
}
