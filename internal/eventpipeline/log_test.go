package eventpipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokercore/internal/engine"
	"pokercore/internal/store/sqlite"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewLog(store)
}

func TestLog_AppendAssignsSequentialSeqs(t *testing.T) {
	l := newTestLog(t)

	seq1, err := l.Append("hand-1", "evt-1", engine.Event{Type: engine.EventHandStarted, Ts: time.Unix(1, 0)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq1)

	seq2, err := l.Append("hand-1", "evt-2", engine.Event{Type: engine.EventActionTaken, Ts: time.Unix(2, 0)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq2)
}

func TestLog_AppendIsIdempotentPerEventID(t *testing.T) {
	l := newTestLog(t)

	seq1, err := l.Append("hand-1", "evt-1", engine.Event{Type: engine.EventHandStarted, Ts: time.Unix(1, 0)})
	require.NoError(t, err)

	// Retried append of the same eventId must return the original seq, not
	// allocate a new one.
	seq2, err := l.Append("hand-1", "evt-1", engine.Event{Type: engine.EventHandStarted, Ts: time.Unix(1, 0)})
	require.NoError(t, err)
	assert.Equal(t, seq1, seq2)

	rows, err := l.ReadFrom("hand-1", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "the duplicate append must not create a second row")
}

func TestLog_SeqsAreScopedPerHand(t *testing.T) {
	l := newTestLog(t)

	seqA, err := l.Append("hand-A", "evt-1", engine.Event{Type: engine.EventHandStarted, Ts: time.Unix(1, 0)})
	require.NoError(t, err)
	seqB, err := l.Append("hand-B", "evt-1", engine.Event{Type: engine.EventHandStarted, Ts: time.Unix(1, 0)})
	require.NoError(t, err)

	assert.Equal(t, int64(1), seqA)
	assert.Equal(t, int64(1), seqB)
}

func TestLog_ReadFromRespectsFloor(t *testing.T) {
	l := newTestLog(t)
	for i := 1; i <= 3; i++ {
		_, err := l.Append("hand-1", string(rune('a'+i)), engine.Event{Type: engine.EventActionTaken, Ts: time.Unix(int64(i), 0)})
		require.NoError(t, err)
	}

	rows, err := l.ReadFrom("hand-1", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].Seq)
	assert.Equal(t, int64(3), rows[1].Seq)
}
