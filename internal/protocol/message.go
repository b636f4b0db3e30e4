// Package protocol implements the kierki wire codec: the tagged-variant message
// grammar described in spec.md §4.1, encoded and decoded as CRLF-terminated ASCII
// lines no longer than 50 octets.
package protocol

import "kierki.dev/kierki/internal/card"

// MaxLineLength is the maximum number of octets a wire line may occupy, CRLF
// included.
const MaxLineLength = 50

// Tag identifies a message variant by its wire keyword.
type Tag string

const (
	TagIAM   Tag = "IAM"
	TagBUSY  Tag = "BUSY"
	TagDEAL  Tag = "DEAL"
	TagTRICK Tag = "TRICK"
	TagWRONG Tag = "WRONG"
	TagTAKEN Tag = "TAKEN"
	TagSCORE Tag = "SCORE"
	TagTOTAL Tag = "TOTAL"
)

// tagsLongestFirst lists every tag ordered so that no tag is a prefix of one
// appearing later — in this grammar no tag is ever a prefix of another, but the
// ordering is kept explicit so the matcher in decode.go stays correct even if a
// future variant were added that is a prefix of an existing one.
var tagsLongestFirst = []Tag{TagTRICK, TagWRONG, TagTAKEN, TagSCORE, TagTOTAL, TagBUSY, TagDEAL, TagIAM}

// Message is the tagged-variant sum type for every wire message. Exhaustive
// handling is done by a type switch on the concrete type, mirroring spec.md §9's
// note that the source's runtime downcast idiom becomes pattern matching here.
type Message interface {
	Tag() Tag
}

// IAM is sent by a client claiming a seat.
type IAM struct {
	Seat card.Seat
}

func (IAM) Tag() Tag { return TagIAM }

// Busy is the server's rejection of a seat claim, listing the seats currently filled.
type Busy struct {
	Seats []card.Seat
}

func (Busy) Tag() Tag { return TagBUSY }

// Deal announces a new deal: its scoring type, its opening seat, and one seat's
// 13-card hand.
type Deal struct {
	Type   card.DealType
	Opener card.Seat
	Cards  []card.Card
}

func (Deal) Tag() Tag { return TagDEAL }

// Trick is both the server's "it's your turn" prompt (0..3 cards already played)
// and a player's reply (exactly 1 card) — the wire shape is identical; the caller
// decides which semantics apply based on direction and context, per spec.md §4.1.
type Trick struct {
	Number int
	Cards  []card.Card
}

func (Trick) Tag() Tag { return TagTRICK }

// Wrong rejects an illegal Trick reply, carrying the trick number it was rejected in.
type Wrong struct {
	Number int
}

func (Wrong) Tag() Tag { return TagWRONG }

// Taken announces a completed trick's four cards and the seat that won them.
type Taken struct {
	Number  int
	Cards   [4]card.Card
	TakenBy card.Seat
}

func (Taken) Tag() Tag { return TagTAKEN }

// Score carries every seat's points for the just-completed deal.
type Score struct {
	Points map[card.Seat]int
}

func (Score) Tag() Tag { return TagSCORE }

// Total carries every seat's cumulative points across all completed deals.
type Total struct {
	Points map[card.Seat]int
}

func (Total) Tag() Tag { return TagTOTAL }
