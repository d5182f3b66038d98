package table

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"pokercore/internal/ids"
	"pokercore/internal/store/sqlite"
)

// Registry owns every table this Game service instance is the single
// writer for, grounded in the teacher's Server.tables map plus
// CreateTable/ListTables lobby surface.
type Registry struct {
	store *sqlite.Store

	mu     sync.RWMutex
	tables map[string]*Table
}

func NewRegistry(store *sqlite.Store) *Registry {
	return &Registry{store: store, tables: make(map[string]*Table)}
}

// Create makes a new table, persists its initial row, and registers it.
func (r *Registry) Create(ownerID string, cfg Config) (*Table, error) {
	id := ids.New()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	t := New(id, ownerID, cfg, rng)

	r.mu.Lock()
	r.tables[id] = t
	r.mu.Unlock()

	if r.store != nil {
		if err := r.persist(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (r *Registry) persist(t *Table) error {
	state, err := t.StateJSON()
	if err != nil {
		return fmt.Errorf("table registry: marshal state: %w", err)
	}
	return r.store.SaveTable(sqlite.TableRow{
		ID:               t.ID,
		OwnerID:          t.OwnerID,
		SmallBlind:       t.Config.SmallBlind,
		BigBlind:         t.Config.BigBlind,
		StartingStack:    t.Config.StartingStack,
		MaxPlayers:       t.Config.MaxPlayers,
		TurnTimerSeconds: t.Config.TurnTimerSeconds,
		ButtonSeat:       t.buttonSeat,
		StateJSON:        state,
	})
}

// Persist flushes t's current state to the store. Callers invoke this
// after any mutation they want to survive a restart (join/leave/ready, and
// periodically while a hand is live).
func (r *Registry) Persist(t *Table) error {
	if r.store == nil {
		return nil
	}
	return r.persist(t)
}

func (r *Registry) Get(id string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[id]
	return t, ok
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.tables, id)
	r.mu.Unlock()
	if r.store != nil {
		_ = r.store.DeleteTable(id)
	}
}

// ListingView is the redacted metadata the lobby surface exposes.
type ListingView struct {
	ID         string `json:"id"`
	OwnerID    string `json:"ownerId"`
	SeatCount  int    `json:"seatCount"`
	MaxPlayers int    `json:"maxPlayers"`
	SmallBlind int64  `json:"smallBlind"`
	BigBlind   int64  `json:"bigBlind"`
	HandLive   bool   `json:"handLive"`
}

// ListOwnedTables returns metadata for every table owned by userId, the
// lobby listing the spec's Non-goals still exclude matchmaking/discovery
// for — this is visibility into one's own tables only.
func (r *Registry) ListOwnedTables(userID string) []ListingView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ListingView
	for _, t := range r.tables {
		if t.OwnerID != userID {
			continue
		}
		out = append(out, ListingView{
			ID: t.ID, OwnerID: t.OwnerID, SeatCount: len(t.Seats()),
			MaxPlayers: t.Config.MaxPlayers, SmallBlind: t.Config.SmallBlind,
			BigBlind: t.Config.BigBlind, HandLive: t.HasLiveHand(),
		})
	}
	return out
}

// LoadAll restores every persisted table row (config, seats, button) on
// startup. A hand that was live before the restart is not restored.
func (r *Registry) LoadAll() error {
	if r.store == nil {
		return nil
	}
	rows, err := r.store.LoadAllTables()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		t := New(row.ID, row.OwnerID, Config{
			SmallBlind: row.SmallBlind, BigBlind: row.BigBlind,
			MaxPlayers: row.MaxPlayers, TurnTimerSeconds: row.TurnTimerSeconds,
			StartingStack: row.StartingStack,
		}, rng)
		if err := t.RestoreState(row.StateJSON); err != nil {
			return fmt.Errorf("table registry: restore %s: %w", row.ID, err)
		}
		r.tables[row.ID] = t
	}
	return nil
}

// SweepIdle evicts tables that have sat empty for longer than idleWindow.
func (r *Registry) SweepIdle(now time.Time, idleWindow time.Duration) {
	r.mu.Lock()
	var victims []string
	for id, t := range r.tables {
		if t.IdleFor(now) > idleWindow {
			victims = append(victims, id)
		}
	}
	r.mu.Unlock()
	for _, id := range victims {
		r.Delete(id)
	}
}

// All returns a snapshot of every currently registered table.
func (r *Registry) All() []*Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	return out
}
