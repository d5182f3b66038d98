// Package eventpipeline is the durable per-hand event log, its stream
// delivery to consumer groups, and the hand materializer that folds events
// into snapshots.
package eventpipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"pokercore/internal/engine"
	"pokercore/internal/store/sqlite"
)

// Log is the append-only, handId-partitioned durable event log. Appends for
// a single handId are serialized by the caller (the table actor owning
// that hand); Log itself only assigns sequence numbers and persists rows.
type Log struct {
	store *sqlite.Store

	seqs map[string]int64 // in-memory cache of the last seq per handId
}

func NewLog(store *sqlite.Store) *Log {
	return &Log{store: store, seqs: make(map[string]int64)}
}

// Append assigns the next seq for handId and persists the event, keyed by
// (handId, eventId) for idempotency: a duplicate eventId with the same
// payload is a no-op that returns the seq it was first appended at.
func (l *Log) Append(handID, eventID string, ev engine.Event) (seq int64, err error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return 0, fmt.Errorf("eventpipeline: marshal payload: %w", err)
	}

	next := l.seqs[handID] + 1
	inserted, err := l.store.AppendEvent(handID, eventID, next, string(ev.Type), payload, ev.Ts.UnixNano())
	if err != nil {
		return 0, err
	}
	if inserted {
		l.seqs[handID] = next
		return next, nil
	}

	// Already present: this is a retried append of an event we've already
	// recorded. Find its real seq instead of silently reusing next.
	rows, err := l.store.LoadEventsFrom(handID, 1)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if r.EventID == eventID {
			return r.Seq, nil
		}
	}
	return 0, fmt.Errorf("eventpipeline: duplicate eventId %s not found on reread", eventID)
}

// Row is one durable event as read back from the log.
type Row struct {
	HandID  string
	EventID string
	Seq     int64
	Type    engine.EventType
	Payload json.RawMessage
	Ts      time.Time
}

// ReadFrom returns every event for handId with seq >= fromSeq, in order.
func (l *Log) ReadFrom(handID string, fromSeq int64) ([]Row, error) {
	rows, err := l.store.LoadEventsFrom(handID, fromSeq)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row{
			HandID:  handID,
			EventID: r.EventID,
			Seq:     r.Seq,
			Type:    engine.EventType(r.Type),
			Payload: r.Payload,
			Ts:      time.Unix(0, r.Ts),
		})
	}
	return out, nil
}
