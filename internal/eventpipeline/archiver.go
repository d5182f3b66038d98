package eventpipeline

import (
	"time"

	"pokercore/internal/store/sqlite"
)

// Retention controls how long the hot stream keeps events for a hand
// before they're eligible for archival and trimming. Externalized per the
// open question on hand-history retention — no concrete cold store is
// named in scope, so Archiver is the seam a real one plugs into later.
type Retention struct {
	HotWindow time.Duration
}

func DefaultRetention() Retention { return Retention{HotWindow: 24 * time.Hour} }

// Archiver moves events older than the hot window to cold storage. Sweep
// deletes a hand's hot sqlite rows after handing them to Archive, so with
// the default NoopArchiver those events are dropped, not kept anywhere.
type Archiver interface {
	Archive(handID string, rows []Row) error
}

type NoopArchiver struct{}

func (NoopArchiver) Archive(string, []Row) error { return nil }

// Sweep finds every ended hand whose last event predates retention's hot
// window, hands its rows to archiver, and trims them from the hot log.
// Call periodically from a supervisor loop; returns how many hands were
// swept for the caller to log.
func Sweep(store *sqlite.Store, log *Log, archiver Archiver, retention Retention, now time.Time) (int, error) {
	cutoff := now.Add(-retention.HotWindow).UnixNano()
	handIDs, err := store.EndedHandIDsWithLastEventBefore(cutoff)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, handID := range handIDs {
		rows, err := log.ReadFrom(handID, 0)
		if err != nil {
			return archived, err
		}
		if len(rows) == 0 {
			continue
		}
		if err := archiver.Archive(handID, rows); err != nil {
			return archived, err
		}
		if err := store.DeleteEventsForHand(handID); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}
