// Package rpc is the typed Gateway-to-Game/Event RPC surface: Go
// interfaces carrying rpcerr.Error codes, with one concrete transport
// (HTTP+JSON) implemented by Client and Server in this package.
package rpc

import (
	"context"

	"pokercore/internal/engine"
)

// SubmitActionRequest is the gateway's forwarded client action.
type SubmitActionRequest struct {
	TableID string        `json:"tableId"`
	HandID  string        `json:"handId"`
	SeatID  int           `json:"seatId"`
	Action  engine.Action `json:"action"`
}

type SubmitActionResponse struct {
	Accepted         bool               `json:"accepted"`
	RejectReason     string             `json:"rejectReason,omitempty"`
	NextStateVersion int64              `json:"nextStateVersion,omitempty"`
	Events           []EventView        `json:"events,omitempty"`
}

// EventView is the wire-safe projection of an engine.Event.
type EventView struct {
	Type    string `json:"type"`
	Seat    int    `json:"seat"`
	Payload any    `json:"payload"`
	Ts      int64  `json:"ts"`
}

type GetTableSnapshotRequest struct {
	TableID string `json:"tableId"`
}

type GetHandSnapshotRequest struct {
	HandID string `json:"handId"`
}

// CreateTableRequest/JoinTableRequest/SetReadyRequest are supplemented
// beyond the base spec's minimal SubmitAction/GetTableSnapshot/
// GetHandSnapshot catalog, grounded in the teacher's CreateTable/Join/
// SetPlayerReady lobby surface, carried over the same HTTP/JSON transport.
type CreateTableRequest struct {
	OwnerID          string `json:"ownerId"`
	SmallBlind       int64  `json:"smallBlind"`
	BigBlind         int64  `json:"bigBlind"`
	MaxPlayers       int    `json:"maxPlayers"`
	StartingStack    int64  `json:"startingStack"`
	TurnTimerSeconds int    `json:"turnTimerSeconds"`
}

type CreateTableResponse struct {
	TableID string `json:"tableId"`
}

type JoinTableRequest struct {
	TableID string `json:"tableId"`
	SeatID  int    `json:"seatId"`
	UserID  string `json:"userId"`
}

type LeaveTableRequest struct {
	TableID string `json:"tableId"`
	SeatID  int    `json:"seatId"`
}

type SetReadyRequest struct {
	TableID string `json:"tableId"`
	SeatID  int    `json:"seatId"`
	Ready   bool   `json:"ready"`
}

type ListOwnedTablesRequest struct {
	UserID string `json:"userId"`
}

// GetHoleCardsRequest is a private per-connection pull: the gateway calls
// this on behalf of whichever userID owns the connection, never on behalf
// of a seat it doesn't control, and never broadcasts the result.
type GetHoleCardsRequest struct {
	TableID string `json:"tableId"`
	UserID  string `json:"userId"`
}

type GetHoleCardsResponse struct {
	SeatID int             `json:"seatId"`
	Cards  []engine.Card   `json:"cards,omitempty"`
}

// GameService is the Gateway-facing RPC contract the Game service
// implements. Every method accepts a context carrying a cancellation
// deadline. GameServer returns *rpcerr.Error on failure; Client returns
// *rpcerr.Error (service_unavailable) when the request cannot be sent, and
// otherwise a plain error whose text is the server's "code: message" pair.
type GameService interface {
	SubmitAction(ctx context.Context, req SubmitActionRequest) (SubmitActionResponse, error)
	GetTableSnapshot(ctx context.Context, req GetTableSnapshotRequest) (any, error)
	CreateTable(ctx context.Context, req CreateTableRequest) (CreateTableResponse, error)
	JoinTable(ctx context.Context, req JoinTableRequest) error
	LeaveTable(ctx context.Context, req LeaveTableRequest) error
	SetReady(ctx context.Context, req SetReadyRequest) error
	ListOwnedTables(ctx context.Context, req ListOwnedTablesRequest) ([]any, error)
	GetHoleCards(ctx context.Context, req GetHoleCardsRequest) (GetHoleCardsResponse, error)
}

// EventService is the Gateway/Game-facing RPC contract the Event service
// implements.
type EventService interface {
	GetHandSnapshot(ctx context.Context, req GetHandSnapshotRequest) (any, error)
}
