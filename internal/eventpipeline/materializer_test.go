package eventpipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokercore/internal/engine"
	"pokercore/internal/store/sqlite"
)

func rowFor(t *testing.T, handID, eventID string, seq int64, typ engine.EventType, payload any, ts time.Time) Row {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return Row{HandID: handID, EventID: eventID, Seq: seq, Type: typ, Payload: raw, Ts: ts}
}

func TestFold_HandStartedResetsSnapshot(t *testing.T) {
	row := rowFor(t, "hand-1", "evt-1", 1, engine.EventHandStarted, engine.HandStartedPayload{
		ButtonSeat: 0, SBSeat: 0, BBSeat: 1, SB: 5, BB: 10,
		Seats: []engine.SeatState{{SeatID: 0, UserID: "alice", Stack: 995}, {SeatID: 1, UserID: "bob", Stack: 990}},
	}, time.Unix(1, 0))

	snap, err := Fold(HandSnapshot{HandID: "stale", Version: 99}, row)
	require.NoError(t, err)

	assert.Equal(t, "hand-1", snap.HandID)
	assert.Equal(t, engine.Preflop.String(), snap.Street)
	assert.Len(t, snap.Seats, 2)
	assert.Equal(t, int64(1), snap.Version)
}

func TestFold_StreetAdvancedUpdatesStreetAndCommunity(t *testing.T) {
	snap := HandSnapshot{HandID: "hand-1", Street: engine.Preflop.String(), Version: 1}
	community := []engine.Card{{Rank: engine.Ace, Suit: engine.Spades}, {Rank: engine.King, Suit: engine.Hearts}, {Rank: engine.Two, Suit: engine.Clubs}}
	row := rowFor(t, "hand-1", "evt-2", 2, engine.EventStreetAdvanced, engine.StreetAdvancedPayload{
		Street: engine.Flop, Community: community,
	}, time.Unix(2, 0))

	snap, err := Fold(snap, row)
	require.NoError(t, err)
	assert.Equal(t, engine.Flop.String(), snap.Street)
	assert.Equal(t, community, snap.Community)
	assert.Equal(t, int64(2), snap.Version)
}

func TestFold_ActionTakenUpdatesSeatsAndPotsButNotStreet(t *testing.T) {
	snap := HandSnapshot{HandID: "hand-1", Street: engine.Flop.String(), Version: 2}
	row := rowFor(t, "hand-1", "evt-3", 3, engine.EventActionTaken, engine.ActionTakenPayload{
		Seat: 0, Action: engine.Action{Type: engine.Call, Amount: 20},
		Seats: []engine.SeatState{{SeatID: 0, UserID: "alice", Stack: 80}, {SeatID: 1, UserID: "bob", Stack: 100}},
		Pots:  []engine.PotState{{Amount: 20, Eligible: []int{0, 1}}},
	}, time.Unix(3, 0))

	next, err := Fold(snap, row)
	require.NoError(t, err)
	assert.Equal(t, snap.Street, next.Street, "action taken does not change the street")
	assert.Equal(t, int64(3), next.Version)
	require.Len(t, next.Seats, 2)
	assert.Equal(t, int64(80), next.Seats[0].Stack, "fold must apply the seat-state carried on the event, not just bump version")
	require.Len(t, next.Pots, 1)
	assert.Equal(t, int64(20), next.Pots[0].Amount)
}

func TestFold_HandEndedSetsCompleteAndWinners(t *testing.T) {
	snap := HandSnapshot{HandID: "hand-1", Street: engine.River.String(), Version: 10}
	winners := []engine.Winner{{Seat: 1, Amount: 15}}
	row := rowFor(t, "hand-1", "evt-4", 11, engine.EventHandEnded, engine.HandEndedPayload{
		Street: engine.River, Winners: winners,
	}, time.Unix(4, 0))

	next, err := Fold(snap, row)
	require.NoError(t, err)
	assert.Equal(t, engine.Complete.String(), next.Street)
	assert.Equal(t, winners, next.Winners)
	assert.Equal(t, int64(4), next.EndedAt)
}

func TestFold_UnmarshalErrorOnMalformedPayload(t *testing.T) {
	row := Row{HandID: "hand-1", EventID: "evt-1", Seq: 1, Type: engine.EventHandStarted, Payload: json.RawMessage(`{"ButtonSeat":`), Ts: time.Unix(1, 0)}

	_, err := Fold(HandSnapshot{}, row)
	assert.Error(t, err)
}

func TestReplay_IsDeterministicAcrossCalls(t *testing.T) {
	rows := []Row{
		rowFor(t, "hand-1", "evt-1", 1, engine.EventHandStarted, engine.HandStartedPayload{
			BBSeat: 1, SB: 5, BB: 10,
			Seats: []engine.SeatState{{SeatID: 0, UserID: "alice"}, {SeatID: 1, UserID: "bob"}},
		}, time.Unix(1, 0)),
		rowFor(t, "hand-1", "evt-2", 2, engine.EventStreetAdvanced, engine.StreetAdvancedPayload{Street: engine.Flop}, time.Unix(2, 0)),
		rowFor(t, "hand-1", "evt-3", 3, engine.EventHandEnded, engine.HandEndedPayload{
			Street: engine.Flop, Winners: []engine.Winner{{Seat: 1, Amount: 15}},
		}, time.Unix(3, 0)),
	}

	snapA, err := Replay(rows)
	require.NoError(t, err)
	snapB, err := Replay(rows)
	require.NoError(t, err)

	assert.Equal(t, snapA, snapB)
	assert.Equal(t, engine.Complete.String(), snapA.Street)
	assert.Equal(t, int64(3), snapA.Version)
}

func newTestMaterializer(t *testing.T) (*Materializer, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	log := NewLog(store)
	return NewMaterializer(log, store), store
}

func TestMaterializer_ApplyPersistsAndExposesSnapshot(t *testing.T) {
	m, store := newTestMaterializer(t)

	row := rowFor(t, "hand-1", "evt-1", 1, engine.EventHandStarted, engine.HandStartedPayload{
		BBSeat: 1, SB: 5, BB: 10,
		Seats: []engine.SeatState{{SeatID: 0, UserID: "alice"}, {SeatID: 1, UserID: "bob"}},
	}, time.Unix(1, 0))

	require.NoError(t, m.Apply("table-1", row))

	snap, ok := m.Snapshot("hand-1")
	require.True(t, ok)
	assert.Equal(t, "table-1", snap.TableID)
	assert.Equal(t, engine.Preflop.String(), snap.Street)

	raw, err := store.LoadHandSnapshot("hand-1")
	require.NoError(t, err)
	var persisted HandSnapshot
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, snap.Street, persisted.Street)
}

func TestMaterializer_SnapshotMissingHandReturnsFalse(t *testing.T) {
	m, _ := newTestMaterializer(t)
	_, ok := m.Snapshot("nonexistent")
	assert.False(t, ok)
}

func TestMaterializer_ApplySequenceEndsHandOnTerminalEvent(t *testing.T) {
	m, store := newTestMaterializer(t)

	started := rowFor(t, "hand-1", "evt-1", 1, engine.EventHandStarted, engine.HandStartedPayload{
		BBSeat: 1, SB: 5, BB: 10,
		Seats: []engine.SeatState{{SeatID: 0, UserID: "alice"}, {SeatID: 1, UserID: "bob"}},
	}, time.Unix(1, 0))
	ended := rowFor(t, "hand-1", "evt-2", 2, engine.EventHandEnded, engine.HandEndedPayload{
		Street: engine.Preflop, Winners: []engine.Winner{{Seat: 1, Amount: 15}},
	}, time.Unix(2, 0))

	require.NoError(t, m.Apply("table-1", started))
	require.NoError(t, m.Apply("table-1", ended))

	snap, ok := m.Snapshot("hand-1")
	require.True(t, ok)
	assert.Equal(t, engine.Complete.String(), snap.Street)

	raw, err := store.LoadHandSnapshot("hand-1")
	require.NoError(t, err)
	var persisted HandSnapshot
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, []engine.Winner{{Seat: 1, Amount: 15}}, persisted.Winners)
}
