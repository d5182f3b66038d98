package eventpipeline

import (
	"encoding/json"
	"fmt"
	"sync"

	"pokercore/internal/engine"
)

// HandSnapshot is the materialized, fold-reduced state of a hand, enough to
// render UI without replaying the whole log.
type HandSnapshot struct {
	HandID     string           `json:"handId"`
	TableID    string           `json:"tableId"`
	Street     string           `json:"street"`
	Community  []engine.Card    `json:"community"`
	Pots       []PotView        `json:"pots"`
	Seats      []engine.SeatState `json:"seats"`
	Version    int64            `json:"version"` // latest folded seq
	EndedAt    int64            `json:"endedAt,omitempty"`
	Winners    []engine.Winner  `json:"winners,omitempty"`
}

type PotView struct {
	Amount   int64 `json:"amount"`
	Eligible []int `json:"eligibleSeatIds"`
}

func potViews(states []engine.PotState) []PotView {
	out := make([]PotView, 0, len(states))
	for _, p := range states {
		out = append(out, PotView{Amount: p.Amount, Eligible: p.Eligible})
	}
	return out
}

// Fold applies one durable-log row to a snapshot, type-directed per event
// type. Fold is pure: same snapshot + same row always produces the same
// result, which is what makes replay deterministic.
func Fold(snap HandSnapshot, row Row) (HandSnapshot, error) {
	switch row.Type {
	case engine.EventHandStarted:
		var p engine.HandStartedPayload
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return snap, fmt.Errorf("eventpipeline: fold HandStarted: %w", err)
		}
		snap = HandSnapshot{HandID: row.HandID, Street: engine.Preflop.String(), Seats: p.Seats, Pots: potViews(p.Pots)}

	case engine.EventActionTaken, engine.EventTurnTimeout:
		var p engine.ActionTakenPayload
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return snap, fmt.Errorf("eventpipeline: fold ActionTaken: %w", err)
		}
		snap.Seats = p.Seats
		snap.Pots = potViews(p.Pots)

	case engine.EventStreetAdvanced:
		var p engine.StreetAdvancedPayload
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return snap, fmt.Errorf("eventpipeline: fold StreetAdvanced: %w", err)
		}
		snap.Street = p.Street.String()
		snap.Community = p.Community

	case engine.EventHandEnded:
		var p engine.HandEndedPayload
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return snap, fmt.Errorf("eventpipeline: fold HandEnded: %w", err)
		}
		snap.Street = engine.Complete.String()
		snap.Winners = p.Winners
		snap.EndedAt = row.Ts.Unix()
	}

	snap.Version = row.Seq
	return snap, nil
}

// Materializer folds appended events into the current snapshot per handId,
// serialized through a keyed queue so concurrent consumers never race on
// the same hand.
type Materializer struct {
	log   *Log
	store snapshotStore

	mu       sync.Mutex
	queues   map[string]chan func()
	snapshot map[string]HandSnapshot
}

type snapshotStore interface {
	SaveHandSnapshot(handID, tableID string, snapshot any, ended bool) error
	LoadHandSnapshot(handID string) ([]byte, error)
}

func NewMaterializer(log *Log, store snapshotStore) *Materializer {
	return &Materializer{
		log:      log,
		store:    store,
		queues:   make(map[string]chan func()),
		snapshot: make(map[string]HandSnapshot),
	}
}

func (m *Materializer) queueFor(handID string) chan func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[handID]
	if !ok {
		q = make(chan func(), 64)
		m.queues[handID] = q
		go func() {
			for fn := range q {
				fn()
			}
		}()
	}
	return q
}

// Apply folds one row into handId's snapshot and persists it. It is safe to
// call concurrently for different hands; calls for the same handId are
// serialized through that hand's queue so folds never race.
func (m *Materializer) Apply(tableID string, row Row) error {
	q := m.queueFor(row.HandID)
	done := make(chan error, 1)
	q <- func() { done <- m.applySync(tableID, row) }
	return <-done
}

func (m *Materializer) applySync(tableID string, row Row) error {
	m.mu.Lock()
	snap := m.snapshot[row.HandID]
	m.mu.Unlock()

	next, err := Fold(snap, row)
	if err != nil {
		return err
	}
	next.TableID = tableID
	next.HandID = row.HandID

	m.mu.Lock()
	m.snapshot[row.HandID] = next
	m.mu.Unlock()

	ended := next.Street == engine.Complete.String()
	return m.store.SaveHandSnapshot(row.HandID, tableID, next, ended)
}

// Snapshot returns the current in-memory materialized snapshot for a hand,
// if this process has folded any events for it.
func (m *Materializer) Snapshot(handID string) (HandSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshot[handID]
	return snap, ok
}

// Replay recomputes a hand's snapshot from scratch by folding every event
// in append order — deterministic and pure, as required for resync.
func Replay(rows []Row) (HandSnapshot, error) {
	var snap HandSnapshot
	var err error
	for _, row := range rows {
		snap, err = Fold(snap, row)
		if err != nil {
			return HandSnapshot{}, err
		}
	}
	return snap, nil
}
