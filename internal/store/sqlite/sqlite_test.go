package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveLoadTable_RoundTrips(t *testing.T) {
	store := newTestStore(t)

	in := TableRow{
		ID: "table-1", OwnerID: "alice",
		SmallBlind: 5, BigBlind: 10, StartingStack: 1000,
		MaxPlayers: 6, TurnTimerSeconds: 30, ButtonSeat: 2,
		StateJSON: []byte(`{"seats":6}`),
	}
	require.NoError(t, store.SaveTable(in))

	out, err := store.LoadTable("table-1")
	require.NoError(t, err)
	assert.Equal(t, in.OwnerID, out.OwnerID)
	assert.Equal(t, in.SmallBlind, out.SmallBlind)
	assert.Equal(t, in.ButtonSeat, out.ButtonSeat)
	assert.Equal(t, in.StateJSON, out.StateJSON)
}

func TestSaveTable_UpsertUpdatesButtonSeatAndState(t *testing.T) {
	store := newTestStore(t)

	base := TableRow{ID: "table-1", OwnerID: "alice", SmallBlind: 5, BigBlind: 10, StartingStack: 1000, MaxPlayers: 6, TurnTimerSeconds: 30, ButtonSeat: 0, StateJSON: []byte(`{}`)}
	require.NoError(t, store.SaveTable(base))

	base.ButtonSeat = 3
	base.StateJSON = []byte(`{"seats":6,"street":"flop"}`)
	require.NoError(t, store.SaveTable(base))

	out, err := store.LoadTable("table-1")
	require.NoError(t, err)
	assert.Equal(t, 3, out.ButtonSeat)
	assert.Equal(t, []byte(`{"seats":6,"street":"flop"}`), out.StateJSON)
}

func TestLoadTable_UnknownIDErrors(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadTable("missing")
	assert.Error(t, err)
}

func TestLoadAllTables_ReturnsEveryPersistedTable(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveTable(TableRow{ID: "table-1", OwnerID: "alice", MaxPlayers: 6}))
	require.NoError(t, store.SaveTable(TableRow{ID: "table-2", OwnerID: "bob", MaxPlayers: 2}))

	all, err := store.LoadAllTables()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteTable_RemovesRow(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveTable(TableRow{ID: "table-1", OwnerID: "alice"}))
	require.NoError(t, store.DeleteTable("table-1"))

	_, err := store.LoadTable("table-1")
	assert.Error(t, err)
}

func TestSaveLoadHandSnapshot_RoundTrips(t *testing.T) {
	store := newTestStore(t)

	type snap struct {
		Street string `json:"street"`
	}
	require.NoError(t, store.SaveHandSnapshot("hand-1", "table-1", snap{Street: "flop"}, false))

	data, err := store.LoadHandSnapshot("hand-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"street":"flop"}`, string(data))
}

func TestSaveHandSnapshot_UpsertUpdatesEndedFlag(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveHandSnapshot("hand-1", "table-1", map[string]string{}, false))
	require.NoError(t, store.SaveHandSnapshot("hand-1", "table-1", map[string]string{}, true))

	handIDs, err := store.EndedHandIDsWithLastEventBefore(1 << 62)
	require.NoError(t, err)
	assert.Empty(t, handIDs, "no events appended yet, so the hand has no last_ts to match against")

	_, err = store.AppendEvent("hand-1", "evt-1", 1, "HandStarted", []byte(`{}`), 100)
	require.NoError(t, err)
	handIDs, err = store.EndedHandIDsWithLastEventBefore(1 << 62)
	require.NoError(t, err)
	assert.Equal(t, []string{"hand-1"}, handIDs, "the second save set ended=1")
}

func TestAppendEvent_DuplicateEventIDIsIgnored(t *testing.T) {
	store := newTestStore(t)

	inserted, err := store.AppendEvent("hand-1", "evt-1", 1, "HandStarted", []byte(`{}`), 100)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.AppendEvent("hand-1", "evt-1", 1, "HandStarted", []byte(`{}`), 100)
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate event id must be a no-op insert")
}

func TestLoadEventsFrom_OrdersBySeqAndRespectsFloor(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AppendEvent("hand-1", "evt-1", 1, "HandStarted", []byte(`{}`), 100)
	require.NoError(t, err)
	_, err = store.AppendEvent("hand-1", "evt-2", 2, "ActionTaken", []byte(`{}`), 200)
	require.NoError(t, err)
	_, err = store.AppendEvent("hand-1", "evt-3", 3, "StreetAdvanced", []byte(`{}`), 300)
	require.NoError(t, err)

	all, err := store.LoadEventsFrom("hand-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "HandStarted", all[0].Type)
	assert.Equal(t, "StreetAdvanced", all[2].Type)

	fromTwo, err := store.LoadEventsFrom("hand-1", 2)
	require.NoError(t, err)
	assert.Len(t, fromTwo, 2)
}

func TestEndedHandIDsWithLastEventBefore_OnlyMatchesEndedHandsPastCutoff(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendEvent("hand-old", "evt-1", 1, "HandStarted", []byte(`{}`), 100)
	require.NoError(t, err)
	require.NoError(t, store.SaveHandSnapshot("hand-old", "table-1", map[string]string{}, true))

	_, err = store.AppendEvent("hand-live", "evt-1", 1, "HandStarted", []byte(`{}`), 50)
	require.NoError(t, err)
	require.NoError(t, store.SaveHandSnapshot("hand-live", "table-1", map[string]string{}, false))

	_, err = store.AppendEvent("hand-recent", "evt-1", 1, "HandStarted", []byte(`{}`), 10000)
	require.NoError(t, err)
	require.NoError(t, store.SaveHandSnapshot("hand-recent", "table-1", map[string]string{}, true))

	ids, err := store.EndedHandIDsWithLastEventBefore(500)
	require.NoError(t, err)
	assert.Equal(t, []string{"hand-old"}, ids)
}

func TestDeleteEventsForHand_RemovesAllRowsForThatHandOnly(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AppendEvent("hand-1", "evt-1", 1, "HandStarted", []byte(`{}`), 100)
	require.NoError(t, err)
	_, err = store.AppendEvent("hand-2", "evt-1", 1, "HandStarted", []byte(`{}`), 100)
	require.NoError(t, err)

	require.NoError(t, store.DeleteEventsForHand("hand-1"))

	rows, err := store.LoadEventsFrom("hand-1", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = store.LoadEventsFrom("hand-2", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
