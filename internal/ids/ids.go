// Package ids mints identifiers for connections, sessions, hands, and events.
package ids

import "github.com/google/uuid"

func New() string { return uuid.NewString() }

func NewConnectionID() string { return "conn_" + uuid.NewString() }

func NewSessionID() string { return "sess_" + uuid.NewString() }

func NewHandID() string { return "hand_" + uuid.NewString() }

func NewEventID() string { return "evt_" + uuid.NewString() }
