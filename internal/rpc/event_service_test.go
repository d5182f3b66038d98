package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokercore/internal/engine"
	"pokercore/internal/eventpipeline"
	"pokercore/internal/store/sqlite"
)

func newTestEventServer(t *testing.T) (*EventServer, *eventpipeline.Log, *eventpipeline.Materializer) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := eventpipeline.NewLog(store)
	mat := eventpipeline.NewMaterializer(log, store)
	return &EventServer{Materializer: mat, Log: log}, log, mat
}

func TestEventServer_GetHandSnapshotReturnsUnknownHandAsNotFound(t *testing.T) {
	e, _, _ := newTestEventServer(t)
	_, err := e.GetHandSnapshot(context.Background(), GetHandSnapshotRequest{HandID: "nonexistent"})
	assert.Error(t, err)
}

func TestEventServer_GetHandSnapshotPrefersInMemoryMaterializedSnapshot(t *testing.T) {
	e, log, mat := newTestEventServer(t)

	ev := engine.Event{
		Type: engine.EventHandStarted,
		Ts:   time.Unix(1, 0),
		Payload: engine.HandStartedPayload{
			BBSeat: 1, SB: 5, BB: 10,
			Seats: []engine.SeatState{{SeatID: 0, UserID: "alice"}, {SeatID: 1, UserID: "bob"}},
		},
	}
	seq, err := log.Append("hand-1", "evt-1", ev)
	require.NoError(t, err)
	row := eventpipeline.Row{HandID: "hand-1", EventID: "evt-1", Seq: seq, Type: ev.Type, Ts: ev.Ts}
	require.NoError(t, mat.Apply("table-1", row))

	resp, err := e.GetHandSnapshot(context.Background(), GetHandSnapshotRequest{HandID: "hand-1"})
	require.NoError(t, err)
	snap, ok := resp.(eventpipeline.HandSnapshot)
	require.True(t, ok)
	assert.Equal(t, "table-1", snap.TableID)
}

func TestEventServer_GetHandSnapshotFallsBackToReplayWhenNoInMemorySnapshot(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	log := eventpipeline.NewLog(store)

	ev := engine.Event{
		Type: engine.EventHandStarted,
		Ts:   time.Unix(1, 0),
		Payload: engine.HandStartedPayload{
			BBSeat: 1, SB: 5, BB: 10,
			Seats: []engine.SeatState{{SeatID: 0, UserID: "alice"}, {SeatID: 1, UserID: "bob"}},
		},
	}
	_, err = log.Append("hand-1", "evt-1", ev)
	require.NoError(t, err)

	// A fresh Materializer with no Apply calls simulates a restarted
	// process: GetHandSnapshot must fall back to replaying the durable log.
	e := &EventServer{Materializer: eventpipeline.NewMaterializer(log, store), Log: log}

	resp, err := e.GetHandSnapshot(context.Background(), GetHandSnapshotRequest{HandID: "hand-1"})
	require.NoError(t, err)
	snap, ok := resp.(eventpipeline.HandSnapshot)
	require.True(t, ok)
	assert.Equal(t, engine.Preflop.String(), snap.Street)
}
