// Package matchclient is the per-client view of an in-progress match: current
// hand, visible trick, taken piles, and scores, plus the legality and
// move-selection logic a client needs whether it is driven by a human at a
// terminal or by the automatic "best_move" policy. It is grounded on
// client-game-state.cpp in the reference implementation.
package matchclient

import (
	"errors"

	"kierki.dev/kierki/internal/card"
	"kierki.dev/kierki/internal/protocol"
)

// State tracks one client's view of the match it is playing in.
type State struct {
	position card.Seat

	totalPoints int
	points      int
	deal        int
	trick       int

	gotScore  bool
	gotTotal  bool
	dealEnded bool
	trickEnded bool
	waitingForMove bool

	dealType       card.DealType
	startingPlayer card.Seat

	hand        []card.Card
	trickCards  []card.Card
	takenTricks [][4]card.Card
}

// New returns a fresh State for the client seated at position. No deal is in
// progress yet; OnDeal must be called before any other event is valid.
func New(position card.Seat) *State {
	return &State{
		position:  position,
		trick:     1,
		dealEnded: true,
		trickEnded: true,
	}
}

// Position returns the seat this state tracks.
func (s *State) Position() card.Seat { return s.position }

// Hand returns the cards currently in hand, in the order they were dealt or
// last updated — the same order the reference client shows with its "cards"
// command.
func (s *State) Hand() []card.Card {
	out := make([]card.Card, len(s.hand))
	copy(out, s.hand)
	return out
}

// TakenTricks returns every trick this seat has won so far this deal, in the
// order they were taken.
func (s *State) TakenTricks() [][4]card.Card {
	out := make([][4]card.Card, len(s.takenTricks))
	copy(out, s.takenTricks)
	return out
}

// DealPoints and TotalPoints report the most recently received SCORE/TOTAL
// values for this seat.
func (s *State) DealPoints() int  { return s.points }
func (s *State) TotalPoints() int { return s.totalPoints }

// WaitingForMove reports whether the server is currently waiting on a card
// from this seat.
func (s *State) WaitingForMove() bool { return s.waitingForMove }

// DealNumber returns the 1-based number of the current deal.
func (s *State) DealNumber() int { return s.deal }

// CurrentTrick returns the trick number a reply sent right now belongs to.
func (s *State) CurrentTrick() int { return s.trick }

// DealType and StartingPlayer report the current deal's scoring rule and
// opening seat, used by interactive summaries.
func (s *State) DealType() card.DealType   { return s.dealType }
func (s *State) StartingPlayer() card.Seat { return s.startingPlayer }

// OnDeal applies a DEAL message, starting a new deal. It is an error to
// receive DEAL while the previous deal has not ended.
func (s *State) OnDeal(msg protocol.Deal) error {
	if !s.dealEnded {
		return errors.New("matchclient: deal has not ended yet")
	}
	s.deal++
	s.dealEnded = false
	s.gotScore = false
	s.gotTotal = false
	s.trick = 1
	s.trickEnded = true
	s.dealType = msg.Type
	s.startingPlayer = msg.Opener
	s.hand = append([]card.Card(nil), msg.Cards...)
	s.takenTricks = nil
	s.waitingForMove = false
	return nil
}

// OnTrick applies a TRICK prompt naming the cards already played this trick.
func (s *State) OnTrick(msg protocol.Trick) error {
	if !s.trickEnded && msg.Number != s.trick {
		return errors.New("matchclient: trick has not ended yet")
	}
	if s.dealEnded {
		return errors.New("matchclient: deal has ended")
	}
	if msg.Number != s.trick {
		return errors.New("matchclient: trick number is not correct")
	}

	s.trickEnded = false
	s.trickCards = append([]card.Card(nil), msg.Cards...)
	s.waitingForMove = true
	return nil
}

// OnTaken applies a TAKEN message ending the current trick.
func (s *State) OnTaken(msg protocol.Taken) error {
	if s.dealEnded {
		return errors.New("matchclient: deal has ended")
	}
	if msg.Number != s.trick {
		return errors.New("matchclient: trick number is not correct")
	}

	s.trickEnded = true
	s.waitingForMove = false

	if msg.TakenBy == s.position {
		s.takenTricks = append(s.takenTricks, msg.Cards)
	}
	for _, c := range msg.Cards {
		if hand, ok := card.Remove(s.hand, c); ok {
			s.hand = hand
		}
	}

	s.trick = msg.Number + 1
	return nil
}

// OnScore applies a SCORE message, returning this seat's deal points.
func (s *State) OnScore(msg protocol.Score) (int, error) {
	if s.dealEnded {
		return 0, errors.New("matchclient: deal has ended")
	}
	if s.gotScore {
		return 0, errors.New("matchclient: already got score")
	}
	s.gotScore = true
	s.dealEnded = s.gotScore && s.gotTotal
	s.waitingForMove = false
	s.points = msg.Points[s.position]
	return s.points, nil
}

// OnTotal applies a TOTAL message, returning this seat's cumulative points.
func (s *State) OnTotal(msg protocol.Total) (int, error) {
	if s.dealEnded {
		return 0, errors.New("matchclient: deal has ended")
	}
	if s.gotTotal {
		return 0, errors.New("matchclient: already got total")
	}
	s.gotTotal = true
	s.dealEnded = s.gotScore && s.gotTotal
	s.waitingForMove = false
	s.totalPoints = msg.Points[s.position]
	return s.totalPoints, nil
}

// ValidMoves returns the cards in hand that may legally be played next: every
// card of the trick's lead suit, or the whole hand if none match (including
// when this seat is leading, in which case the whole hand is always legal).
func (s *State) ValidMoves() ([]card.Card, error) {
	if s.dealEnded {
		return nil, errors.New("matchclient: deal has ended")
	}
	if s.trickEnded {
		return nil, errors.New("matchclient: trick has ended")
	}
	if len(s.trickCards) == 0 {
		return s.Hand(), nil
	}

	lead := s.trickCards[0].Suit
	var legal []card.Card
	for _, c := range s.hand {
		if c.Suit == lead {
			legal = append(legal, c)
		}
	}
	if len(legal) == 0 {
		return s.Hand(), nil
	}
	return legal, nil
}

// IsValidMove reports whether c is among the currently legal moves.
func (s *State) IsValidMove(c card.Card) (bool, error) {
	legal, err := s.ValidMoves()
	if err != nil {
		return false, err
	}
	return card.Contains(legal, c), nil
}

// BestMove picks the automatic policy's next play: the smallest-rank card when
// leading, otherwise the highest legal card that still loses to the trick's
// current leader, climbing from the first legal move in hand order and
// stopping there if no higher-yet-losing card exists.
func (s *State) BestMove() (card.Card, error) {
	if s.dealEnded {
		return card.Card{}, errors.New("matchclient: deal has ended")
	}
	if s.trickEnded {
		return card.Card{}, errors.New("matchclient: trick has ended")
	}

	if len(s.trickCards) == 0 {
		best := s.hand[0]
		for _, c := range s.hand[1:] {
			if c.Value() < best.Value() {
				best = c
			}
		}
		return best, nil
	}

	legal, err := s.ValidMoves()
	if err != nil {
		return card.Card{}, err
	}

	leadSuit := s.trickCards[0].Suit
	leader := s.trickCards[0]
	best := legal[0]
	for _, c := range legal {
		if card.Beats(c, best, leadSuit) && card.Beats(leader, c, leadSuit) {
			best = c
		}
	}
	return best, nil
}
