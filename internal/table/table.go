// Package table owns a table's seats across hands: joining, leaving,
// ready-checks, persistence, and driving the engine.Hand state machine for
// whichever hand is currently live. It is the single writer for its table.
package table

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"pokercore/internal/engine"
	"pokercore/internal/ids"
)

// SeatStatus mirrors the data model's Seat.status.
type SeatStatus string

const (
	SeatActive       SeatStatus = "active"
	SeatSittingOut   SeatStatus = "sittingOut"
	SeatDisconnected SeatStatus = "disconnected"
)

// Seat is one table-level seat slot, persistent across hands.
type Seat struct {
	SeatID int        `json:"seatId"`
	UserID string     `json:"userId,omitempty"`
	Stack  int64      `json:"stack"`
	Status SeatStatus `json:"status"`
	Ready  bool       `json:"ready"`
}

func (s *Seat) vacant() bool { return s.UserID == "" }

// Config is a table's immutable ruleset.
type Config struct {
	SmallBlind       int64
	BigBlind         int64
	Ante             int64
	MaxPlayers       int
	StartingStack    int64
	TurnTimerSeconds int
}

// Table is one poker table: an ordered set of seats and, at most, one
// currently-live hand.
type Table struct {
	ID      string
	OwnerID string
	Config  Config

	mu         sync.Mutex
	seats      map[int]*Seat
	buttonSeat int
	rng        *rand.Rand

	hand      *engine.Hand
	idleSince time.Time
}

// New creates an empty table.
func New(id, ownerID string, cfg Config, rng *rand.Rand) *Table {
	return &Table{
		ID:         id,
		OwnerID:    ownerID,
		Config:     cfg,
		seats:      make(map[int]*Seat),
		buttonSeat: 0,
		rng:        rng,
		idleSince:  time.Now(),
	}
}

// Join seats userId at seatId with the table's starting stack.
func (t *Table) Join(seatID int, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seatID < 0 || seatID >= t.Config.MaxPlayers {
		return fmt.Errorf("table: seat %d out of range", seatID)
	}
	for _, s := range t.seats {
		if s.UserID == userID {
			return fmt.Errorf("table: user %s already seated at seat %d", userID, s.SeatID)
		}
	}
	if existing, ok := t.seats[seatID]; ok && !existing.vacant() {
		return fmt.Errorf("table: seat %d occupied", seatID)
	}

	t.seats[seatID] = &Seat{SeatID: seatID, UserID: userID, Stack: t.Config.StartingStack, Status: SeatActive}
	return nil
}

// Leave vacates a seat. If the seat is in the live hand it is folded first.
func (t *Table) Leave(seatID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.seats[seatID]
	if !ok || s.vacant() {
		return fmt.Errorf("table: seat %d not occupied", seatID)
	}
	if t.hand != nil {
		if hs, ok := t.hand.Seats[seatID]; ok && !hs.Folded {
			hs.Folded = true
		}
	}
	delete(t.seats, seatID)
	if len(t.seats) == 0 {
		t.idleSince = time.Now()
	}
	return nil
}

// SetReady marks a seated user ready/unready for the next hand.
func (t *Table) SetReady(seatID int, ready bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.seats[seatID]
	if !ok || s.vacant() {
		return fmt.Errorf("table: seat %d not occupied", seatID)
	}
	s.Ready = ready
	return nil
}

// readyActiveSeats returns the occupied, active, ready seats that still have
// chips, in seat order.
func (t *Table) readyActiveSeats() []Seat {
	var out []Seat
	for _, id := range sortedIDs(t.seats) {
		s := t.seats[id]
		if !s.vacant() && s.Status == SeatActive && s.Ready && s.Stack > 0 {
			out = append(out, *s)
		}
	}
	return out
}

func sortedIDs(seats map[int]*Seat) []int {
	ids := make([]int, 0, len(seats))
	for id := range seats {
		ids = append(ids, id)
	}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	return ids
}

// HasLiveHand reports whether a hand is currently in progress.
func (t *Table) HasLiveHand() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hand != nil && t.hand.Street != engine.Complete
}

// MaybeStartHand starts a new hand if none is live and at least two ready
// seats remain, advancing the button from the previous hand's button.
func (t *Table) MaybeStartHand(now time.Time) (*engine.Hand, []engine.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hand != nil && t.hand.Street != engine.Complete {
		return nil, nil, fmt.Errorf("table: hand already live")
	}
	ready := t.readyActiveSeats()
	if len(ready) < 2 {
		return nil, nil, nil
	}

	button := t.nextButton(ready)
	var seatInputs []engine.SeatInput
	for _, s := range ready {
		seatInputs = append(seatInputs, engine.SeatInput{SeatID: s.SeatID, UserID: s.UserID, Stack: s.Stack})
	}

	hand, events := engine.Start(ids.NewHandID(), t.ID, engine.StartInput{
		Seats:            seatInputs,
		ButtonSeat:       button,
		SmallBlind:       t.Config.SmallBlind,
		BigBlind:         t.Config.BigBlind,
		TurnTimerSeconds: t.Config.TurnTimerSeconds,
	}, t.rng, now)

	t.hand = hand
	t.buttonSeat = button
	return hand, events, nil
}

func (t *Table) nextButton(ready []Seat) int {
	ids := make([]int, 0, len(ready))
	for _, s := range ready {
		ids = append(ids, s.SeatID)
	}
	for _, id := range ids {
		if id > t.buttonSeat {
			return id
		}
	}
	return ids[0]
}

// SubmitAction forwards an action to the live hand and, once it completes,
// syncs seat stacks back from the hand.
func (t *Table) SubmitAction(seatID int, action engine.Action, now time.Time) ([]engine.Event, *engine.Rejection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hand == nil {
		return nil, &engine.Rejection{Reason: engine.ReasonHandComplete}
	}
	events, rej := t.hand.Submit(seatID, action, now)
	if rej != nil {
		return nil, rej
	}
	t.syncStacks()
	return events, nil
}

// Tick drives the live hand's turn timer.
func (t *Table) Tick(now time.Time) []engine.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hand == nil {
		return nil
	}
	events := t.hand.Tick(now)
	if len(events) > 0 {
		t.syncStacks()
	}
	return events
}

func (t *Table) syncStacks() {
	if t.hand == nil {
		return
	}
	for seatID, hs := range t.hand.Seats {
		if s, ok := t.seats[seatID]; ok {
			s.Stack = hs.Stack
		}
	}
}

// CurrentHand returns the live hand, or nil.
func (t *Table) CurrentHand() *engine.Hand {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hand
}

// HoleCardsForUser resolves userID's seat and, if a hand is live, that
// seat's hole cards. Only the owning connection should ever receive the
// result — callers must not broadcast it.
func (t *Table) HoleCardsForUser(userID string) (seatID int, cards []engine.Card, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.seats {
		if s.UserID == userID {
			seatID = s.SeatID
			ok = true
			break
		}
	}
	if !ok || t.hand == nil {
		return seatID, nil, ok
	}
	cards = append(cards, t.hand.HoleCards[seatID]...)
	return seatID, cards, true
}

// SeatView is a lobby/snapshot-friendly read of one seat.
type SeatView struct {
	SeatID int        `json:"seatId"`
	UserID string      `json:"userId,omitempty"`
	Stack  int64      `json:"stack"`
	Status SeatStatus `json:"status"`
	Ready  bool       `json:"ready"`
}

// Seats returns a snapshot of every occupied seat, ordered by seat id.
func (t *Table) Seats() []SeatView {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []SeatView
	for _, id := range sortedIDs(t.seats) {
		s := t.seats[id]
		out = append(out, SeatView{SeatID: s.SeatID, UserID: s.UserID, Stack: s.Stack, Status: s.Status, Ready: s.Ready})
	}
	return out
}

// StateJSON serializes the table's seats and button seat for persistence;
// the live hand is not included.
func (t *Table) StateJSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type persisted struct {
		Seats      []SeatView `json:"seats"`
		ButtonSeat int        `json:"buttonSeat"`
	}
	return json.Marshal(persisted{Seats: t.seatsLocked(), ButtonSeat: t.buttonSeat})
}

func (t *Table) seatsLocked() []SeatView {
	var out []SeatView
	for _, id := range sortedIDs(t.seats) {
		s := t.seats[id]
		out = append(out, SeatView{SeatID: s.SeatID, UserID: s.UserID, Stack: s.Stack, Status: s.Status, Ready: s.Ready})
	}
	return out
}

// RestoreState re-seats a table from a previously persisted StateJSON blob.
func (t *Table) RestoreState(data []byte) error {
	var persisted struct {
		Seats      []SeatView `json:"seats"`
		ButtonSeat int        `json:"buttonSeat"`
	}
	if err := json.Unmarshal(data, &persisted); err != nil {
		return fmt.Errorf("table: restore state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seats = make(map[int]*Seat, len(persisted.Seats))
	for _, sv := range persisted.Seats {
		t.seats[sv.SeatID] = &Seat{SeatID: sv.SeatID, UserID: sv.UserID, Stack: sv.Stack, Status: sv.Status, Ready: sv.Ready}
	}
	t.buttonSeat = persisted.ButtonSeat
	return nil
}

// IdleFor reports how long the table has had zero occupied seats.
func (t *Table) IdleFor(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.seats) > 0 {
		return 0
	}
	return now.Sub(t.idleSince)
}
