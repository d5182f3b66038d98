// Package sqlite persists tables (config, seats, button), materialized hand
// snapshots, and the hand event log, grounded in the teacher's sqlite-backed
// table/player persistence (pkg/server/internal/db). A live hand's engine
// state is not stored, so a restart does not resume a hand in progress.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a *sql.DB opened against a single sqlite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			small_blind INTEGER NOT NULL,
			big_blind INTEGER NOT NULL,
			starting_stack INTEGER NOT NULL,
			max_players INTEGER NOT NULL,
			turn_timer_seconds INTEGER NOT NULL,
			button_seat INTEGER NOT NULL DEFAULT 0,
			state_json TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS hands (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL,
			snapshot_json TEXT NOT NULL,
			ended INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hands_table ON hands(table_id)`,
		`CREATE TABLE IF NOT EXISTS hand_events (
			hand_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			ts TIMESTAMP NOT NULL,
			PRIMARY KEY (hand_id, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_events_seq ON hand_events(hand_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// TableRow is the persisted row for one table.
type TableRow struct {
	ID               string
	OwnerID          string
	SmallBlind       int64
	BigBlind         int64
	StartingStack    int64
	MaxPlayers       int
	TurnTimerSeconds int
	ButtonSeat       int
	StateJSON        []byte
}

func (s *Store) SaveTable(t TableRow) error {
	_, err := s.db.Exec(`
		INSERT INTO tables (id, owner_id, small_blind, big_blind, starting_stack, max_players, turn_timer_seconds, button_seat, state_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			button_seat=excluded.button_seat,
			state_json=excluded.state_json,
			updated_at=CURRENT_TIMESTAMP
	`, t.ID, t.OwnerID, t.SmallBlind, t.BigBlind, t.StartingStack, t.MaxPlayers, t.TurnTimerSeconds, t.ButtonSeat, t.StateJSON)
	if err != nil {
		return fmt.Errorf("sqlite: save table %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) LoadTable(id string) (TableRow, error) {
	var t TableRow
	row := s.db.QueryRow(`SELECT id, owner_id, small_blind, big_blind, starting_stack, max_players, turn_timer_seconds, button_seat, state_json FROM tables WHERE id = ?`, id)
	err := row.Scan(&t.ID, &t.OwnerID, &t.SmallBlind, &t.BigBlind, &t.StartingStack, &t.MaxPlayers, &t.TurnTimerSeconds, &t.ButtonSeat, &t.StateJSON)
	if err != nil {
		return t, fmt.Errorf("sqlite: load table %s: %w", id, err)
	}
	return t, nil
}

// LoadAllTables restores every persisted table, used at startup.
func (s *Store) LoadAllTables() ([]TableRow, error) {
	rows, err := s.db.Query(`SELECT id, owner_id, small_blind, big_blind, starting_stack, max_players, turn_timer_seconds, button_seat, state_json FROM tables`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load all tables: %w", err)
	}
	defer rows.Close()

	var out []TableRow
	for rows.Next() {
		var t TableRow
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.SmallBlind, &t.BigBlind, &t.StartingStack, &t.MaxPlayers, &t.TurnTimerSeconds, &t.ButtonSeat, &t.StateJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTable(id string) error {
	_, err := s.db.Exec(`DELETE FROM tables WHERE id = ?`, id)
	return err
}

// SaveHandSnapshot upserts the latest materialized snapshot for a hand.
func (s *Store) SaveHandSnapshot(handID, tableID string, snapshot any, ended bool) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("sqlite: marshal snapshot: %w", err)
	}
	endedInt := 0
	if ended {
		endedInt = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO hands (id, table_id, snapshot_json, ended, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET snapshot_json=excluded.snapshot_json, ended=excluded.ended, updated_at=CURRENT_TIMESTAMP
	`, handID, tableID, data, endedInt)
	if err != nil {
		return fmt.Errorf("sqlite: save hand snapshot %s: %w", handID, err)
	}
	return nil
}

func (s *Store) LoadHandSnapshot(handID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT snapshot_json FROM hands WHERE id = ?`, handID).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load hand snapshot %s: %w", handID, err)
	}
	return data, nil
}

// AppendEvent inserts one hand event at seq, ignoring duplicate eventIds
// (append idempotency per the event pipeline contract).
func (s *Store) AppendEvent(handID, eventID string, seq int64, eventType string, payload []byte, ts int64) (inserted bool, err error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO hand_events (hand_id, event_id, seq, type, payload_json, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, handID, eventID, seq, eventType, payload, ts)
	if err != nil {
		return false, fmt.Errorf("sqlite: append event %s/%s: %w", handID, eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EventRow is one row read back from the durable log.
type EventRow struct {
	EventID string
	Seq     int64
	Type    string
	Payload []byte
	Ts      int64
}

// EndedHandIDsWithLastEventBefore returns every ended hand whose most
// recent event predates cutoff (unix nanoseconds), the candidate set for
// archival/retention sweeps.
func (s *Store) EndedHandIDsWithLastEventBefore(cutoff int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT h.id FROM hands h
		JOIN (SELECT hand_id, MAX(ts) AS last_ts FROM hand_events GROUP BY hand_id) e
			ON e.hand_id = h.id
		WHERE h.ended = 1 AND e.last_ts < ?
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ended hands before cutoff: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan ended hand id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteEventsForHand removes every hot-log row for handID, called once its
// events have been handed to the Archiver.
func (s *Store) DeleteEventsForHand(handID string) error {
	_, err := s.db.Exec(`DELETE FROM hand_events WHERE hand_id = ?`, handID)
	if err != nil {
		return fmt.Errorf("sqlite: delete events for hand %s: %w", handID, err)
	}
	return nil
}

// LoadEventsFrom reads every event for handID with seq >= fromSeq, in order.
func (s *Store) LoadEventsFrom(handID string, fromSeq int64) ([]EventRow, error) {
	rows, err := s.db.Query(`
		SELECT event_id, seq, type, payload_json, ts FROM hand_events
		WHERE hand_id = ? AND seq >= ? ORDER BY seq ASC
	`, handID, fromSeq)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load events for %s: %w", handID, err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.EventID, &r.Seq, &r.Type, &r.Payload, &r.Ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
