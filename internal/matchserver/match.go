// Package matchserver is the server-side match state machine: a deterministic
// sequence of deals and tricks driven entirely by explicit calls from a caller
// (the event loop in internal/serverloop), never by a goroutine of its own. This
// mirrors server-game-state.cpp in the reference implementation one-for-one, with
// the original's single-threaded poll loop replaced by "exactly one goroutine
// calls into a Match at a time," the invariant spec.md §5 asks for.
package matchserver

import (
	"time"

	"kierki.dev/kierki/internal/applog"
	"kierki.dev/kierki/internal/card"
	"kierki.dev/kierki/internal/dealfile"
	"kierki.dev/kierki/internal/protocol"
)

var matchLogger = applog.Nop()

// SetLogger installs the base logger newly-created matches log through; call it
// once at process start. Defaults to a no-op logger so tests don't need to
// configure logging.
func SetLogger(l *applog.Logger) { matchLogger = l }

// Sender delivers an encoded protocol message to one seat. Match never touches a
// net.Conn directly — it calls back through Sender, the same separation the
// teacher draws between ServerContext and its concrete Server (types/interfaces.go),
// so the match's logic can be exercised by tests without any networking at all.
type Sender interface {
	SendTo(seat card.Seat, msg protocol.Message) error
}

// Match plays a fixed schedule of deals to completion.
type Match struct {
	logger  *applog.Logger
	sender  Sender
	timeout time.Duration
	deals   []dealfile.Deal

	occupied map[card.Seat]bool

	currentDealIdx int
	dealStarted    bool
	dealType       card.DealType
	startingPlayer card.Seat
	startingHands  map[card.Seat][]card.Card
	currentHands   map[card.Seat][]card.Card
	takenHistory   []protocol.Taken

	currentTrick int
	trickStarted bool
	currentMove  int
	firstMove    int // index into card.Order
	trickCards   []card.Card
	awaitedPlayer *card.Seat
	awaitedUntil  time.Time

	dealScores  map[card.Seat]int
	totalScores map[card.Seat]int

	gameEnded bool
}

// New builds a Match ready to play deals, sending outbound messages through
// sender and treating timeout as the per-prompt reply deadline.
func New(deals []dealfile.Deal, timeout time.Duration, sender Sender) *Match {
	m := &Match{
		logger:      matchLogger,
		sender:      sender,
		timeout:     timeout,
		deals:       deals,
		occupied:    make(map[card.Seat]bool, 4),
		dealScores:  make(map[card.Seat]int, 4),
		totalScores: make(map[card.Seat]int, 4),
	}
	for _, seat := range card.Order {
		m.dealScores[seat] = 0
		m.totalScores[seat] = 0
	}
	return m
}

// Join seats a newly-IAM'd player. If the seat is already taken it returns the
// full set of currently-occupied seats and joined=false, the caller's cue to send
// BUSY and drop the connection. Otherwise it seats the player and, if a deal is
// already underway, replays enough state (the deal's original DEAL, TAKEN history, and the
// live TRICK prompt if this seat is the one being waited on) for the player to
// resume exactly where any other seat already is.
func (m *Match) Join(seat card.Seat) (busy []card.Seat, joined bool) {
	if m.occupied[seat] {
		for _, s := range card.Order {
			if m.occupied[s] {
				busy = append(busy, s)
			}
		}
		return busy, false
	}

	m.occupied[seat] = true
	m.logger.Infof("seat %s joined", seat)

	if m.dealStarted {
		m.rejoin(seat)
	}
	return nil, true
}

// Disconnect frees seat so a future IAM for it is accepted again.
func (m *Match) Disconnect(seat card.Seat) {
	if m.occupied[seat] {
		m.logger.Infof("seat %s disconnected", seat)
	}
	m.occupied[seat] = false
}

// AreReady reports whether all four seats are currently occupied.
func (m *Match) AreReady() bool {
	for _, seat := range card.Order {
		if !m.occupied[seat] {
			return false
		}
	}
	return true
}

// Ended reports whether every scheduled deal has been played to completion.
func (m *Match) Ended() bool {
	return m.gameEnded
}

// Tick advances the match as far as it can go without further input: starting
// the next deal, prompting the next seat for its card, or ending the match. The
// caller (internal/serverloop) calls Tick after every event that might unblock
// progress — a join, a disconnect, an accepted or rejected play, or a timeout —
// exactly where kierki-serwer.cpp's main loop calls continue_game().
func (m *Match) Tick() {
	if !m.AreReady() {
		return
	}

	if !m.dealStarted {
		if m.currentDealIdx == len(m.deals) {
			m.endGame()
			return
		}
		m.startDeal()
	}

	m.continueDeal()
}

// HandleTrick applies a play attempt from seat. It returns a Wrong reply when the
// play is rejected (wrong turn, wrong trick number, no cards, or an illegal
// card); a nil return means the play was accepted and state has advanced — the
// caller should call Tick again to prompt whoever's next.
func (m *Match) HandleTrick(seat card.Seat, msg protocol.Trick) *protocol.Wrong {
	wrong := &protocol.Wrong{Number: m.currentTrick}

	if m.awaitedPlayer == nil || *m.awaitedPlayer != seat {
		return wrong
	}
	if msg.Number != m.currentTrick {
		return wrong
	}
	if len(msg.Cards) == 0 {
		return wrong
	}

	played := msg.Cards[len(msg.Cards)-1]
	if !m.isValidMove(played, seat) {
		return wrong
	}

	hand, ok := card.Remove(m.currentHands[seat], played)
	if !ok {
		return wrong
	}
	m.currentHands[seat] = hand
	m.trickCards = append(m.trickCards, played)
	m.currentMove++
	m.awaitedPlayer = nil

	return nil
}

// HandleTimeout re-sends the current TRICK prompt to seat after its reply
// deadline has passed, exactly as kierki-serwer.cpp's main loop does when a
// client's awaited TRICK message times out: the prompt is repeated, not
// escalated, since spec.md has no forfeit-on-timeout rule.
func (m *Match) HandleTimeout(seat card.Seat) {
	if m.awaitedPlayer != nil && *m.awaitedPlayer == seat {
		m.sendTrickPrompt(seat)
	}
}

// AwaitedSeat reports which seat, if any, the match is currently waiting on a
// TRICK reply from, and the deadline for that reply.
func (m *Match) AwaitedSeat() (seat card.Seat, deadline time.Time, ok bool) {
	if m.awaitedPlayer == nil {
		return card.Seat(0), time.Time{}, false
	}
	return *m.awaitedPlayer, m.awaitedUntil, true
}

func (m *Match) startDeal() {
	m.currentDealIdx++
	m.dealStarted = true

	deal := m.deals[m.currentDealIdx-1]
	m.dealType = deal.Type
	m.startingPlayer = deal.Opener

	m.startingHands = make(map[card.Seat][]card.Card, 4)
	m.currentHands = make(map[card.Seat][]card.Card, 4)
	for seat, hand := range deal.Hands {
		handCopy := make([]card.Card, len(hand))
		copy(handCopy, hand)
		m.startingHands[seat] = handCopy
		m.currentHands[seat] = card.SortedCopy(hand)
		m.dealScores[seat] = 0
	}

	m.currentTrick = 0
	m.trickStarted = false
	m.currentMove = 0
	m.trickCards = nil
	m.takenHistory = nil
	m.firstMove = m.startingPlayer.Index()

	for _, seat := range card.Order {
		m.sendDeal(seat)
	}
}

func (m *Match) continueDeal() {
	if m.currentTrick <= 13 {
		m.continueTrick()
		return
	}

	for _, seat := range card.Order {
		m.totalScores[seat] += m.dealScores[seat]
	}
	m.sendScores()
	m.dealStarted = false
}

func (m *Match) continueTrick() {
	if !m.trickStarted {
		m.currentTrick++
		m.trickStarted = true
		m.currentMove = 0
		m.trickCards = nil
		m.awaitedPlayer = nil
	}

	if m.currentMove == 4 {
		m.trickStarted = false
		m.finishTrick()
		if m.currentTrick == 13 {
			m.currentTrick++
		}
		return
	}

	if m.awaitedPlayer == nil {
		seat := card.Order[(m.currentMove+m.firstMove)%4]
		m.awaitedPlayer = &seat
		m.sendTrickPrompt(seat)
	}
}

func (m *Match) finishTrick() {
	winnerIdx := m.firstMove
	leadSuit := m.trickCards[0].Suit
	best := m.trickCards[0]

	for i := 1; i < 4; i++ {
		if card.Beats(m.trickCards[i], best, leadSuit) {
			best = m.trickCards[i]
			winnerIdx = (m.firstMove + i) % 4
		}
	}
	m.firstMove = winnerIdx

	var cards [4]card.Card
	copy(cards[:], m.trickCards)
	winner := card.Order[winnerIdx]

	m.dealScores[winner] += card.TrickScore(m.dealType, cards, m.currentTrick)

	taken := protocol.Taken{Number: m.currentTrick, Cards: cards, TakenBy: winner}
	m.takenHistory = append(m.takenHistory, taken)
	for _, seat := range card.Order {
		m.send(seat, taken)
	}
}

func (m *Match) endGame() {
	m.gameEnded = true
	m.logger.Infof("match complete")
}

func (m *Match) isValidMove(played card.Card, seat card.Seat) bool {
	hand := m.currentHands[seat]
	var legal []card.Card
	if len(m.trickCards) > 0 {
		lead := m.trickCards[0].Suit
		for _, c := range hand {
			if c.Suit == lead {
				legal = append(legal, c)
			}
		}
	}
	if len(legal) == 0 {
		legal = hand
	}
	return card.Contains(legal, played)
}

func (m *Match) rejoin(seat card.Seat) {
	m.sendDeal(seat)
	for _, taken := range m.takenHistory {
		m.send(seat, taken)
	}
	if m.trickStarted && m.awaitedPlayer != nil && *m.awaitedPlayer == seat {
		m.sendTrickPrompt(seat)
	}
}

func (m *Match) sendDeal(seat card.Seat) {
	m.send(seat, protocol.Deal{
		Type:   m.dealType,
		Opener: m.startingPlayer,
		Cards:  m.startingHands[seat],
	})
}

func (m *Match) sendTrickPrompt(seat card.Seat) {
	m.awaitedUntil = time.Now().Add(m.timeout)
	cardsSoFar := make([]card.Card, len(m.trickCards))
	copy(cardsSoFar, m.trickCards)
	m.send(seat, protocol.Trick{Number: m.currentTrick, Cards: cardsSoFar})
}

func (m *Match) sendScores() {
	deal := protocol.Score{Points: cloneScores(m.dealScores)}
	total := protocol.Total{Points: cloneScores(m.totalScores)}
	for _, seat := range card.Order {
		m.send(seat, deal)
		m.send(seat, total)
	}
}

func (m *Match) send(seat card.Seat, msg protocol.Message) {
	if err := m.sender.SendTo(seat, msg); err != nil {
		m.logger.Debugf("send to seat %s failed: %v", seat, err)
	}
}

func cloneScores(src map[card.Seat]int) map[card.Seat]int {
	dst := make(map[card.Seat]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
