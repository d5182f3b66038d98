package rpc

import (
	"context"
	"encoding/json"
	"time"

	"pokercore/internal/bus"
	"pokercore/internal/engine"
	"pokercore/internal/eventpipeline"
	"pokercore/internal/rpcerr"
	"pokercore/internal/table"
)

// tableChannel is the bus channel kind gateway instances subscribe table
// patches under; duplicated here rather than imported from internal/gateway
// to avoid a gateway<->rpc import cycle (gateway already imports rpc).
const tableChannel = "table"

// GameServer is the concrete GameService backing one Game instance: a
// table registry, the durable log those tables' hands append to, and the
// materializer that folds hand snapshots. Bus is optional; when set, every
// state change is fanned out to subscribed gateway instances.
type GameServer struct {
	Tables       *table.Registry
	Log          *eventpipeline.Log
	Materializer *eventpipeline.Materializer
	Stream       *eventpipeline.Stream
	Bus          *bus.Bus
}

// PublishTablePatch fans a table-scoped patch out to every gateway instance
// subscribed to tableId's table channel. Best-effort: a fabric hiccup does
// not fail the RPC that triggered it, since the durable log already has the
// authoritative event and a client can always re-fetch via GetTableSnapshot.
func (g *GameServer) PublishTablePatch(tableID string, patch any) {
	if g.Bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = g.Bus.Publish(ctx, tableChannel, tableID, patch)
}

var _ GameService = (*GameServer)(nil)

func (g *GameServer) SubmitAction(ctx context.Context, req SubmitActionRequest) (SubmitActionResponse, error) {
	t, ok := g.Tables.Get(req.TableID)
	if !ok {
		return SubmitActionResponse{}, rpcerr.NotFound("table %s not found", req.TableID)
	}
	if h := t.CurrentHand(); h == nil || h.ID != req.HandID {
		return SubmitActionResponse{}, rpcerr.NotFound("hand %s not live on table %s", req.HandID, req.TableID)
	}

	events, rej := t.SubmitAction(req.SeatID, req.Action, time.Now())
	if rej != nil {
		return SubmitActionResponse{Accepted: false, RejectReason: rej.Reason}, nil
	}

	version, err := g.AppendAndPublish(req.TableID, req.HandID, events)
	if err != nil {
		return SubmitActionResponse{}, rpcerr.Unavailable("append events: %v", err)
	}

	_ = g.Tables.Persist(t)
	g.PublishTablePatch(req.TableID, EventsToViews(events))
	return SubmitActionResponse{Accepted: true, NextStateVersion: version, Events: EventsToViews(events)}, nil
}

// AppendAndPublish appends events to handId's durable log, publishes each
// to the stream, and folds it into the materializer. Exported for the
// table-tick supervisor, which drives timers and auto-started hands
// outside of any inbound RPC.
func (g *GameServer) AppendAndPublish(tableID, handID string, events []engine.Event) (int64, error) {
	var version int64
	for _, ev := range events {
		eventID := tableID + "/" + handID + "/" + string(ev.Type) + "/" + ev.Ts.String()
		seq, err := g.Log.Append(handID, eventID, ev)
		if err != nil {
			return 0, err
		}
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return 0, err
		}
		row := eventpipeline.Row{HandID: handID, EventID: eventID, Seq: seq, Type: ev.Type, Payload: payload, Ts: ev.Ts}
		if g.Stream != nil {
			g.Stream.Publish(row)
		}
		if g.Materializer != nil {
			_ = g.Materializer.Apply(tableID, row)
		}
		version = seq
	}
	return version, nil
}

func (g *GameServer) GetTableSnapshot(_ context.Context, req GetTableSnapshotRequest) (any, error) {
	t, ok := g.Tables.Get(req.TableID)
	if !ok {
		return nil, rpcerr.NotFound("table %s not found", req.TableID)
	}
	return t.Seats(), nil
}

func (g *GameServer) CreateTable(_ context.Context, req CreateTableRequest) (CreateTableResponse, error) {
	if req.MaxPlayers <= 0 || req.BigBlind <= 0 {
		return CreateTableResponse{}, rpcerr.InvalidArgument("invalid table config")
	}
	t, err := g.Tables.Create(req.OwnerID, table.Config{
		SmallBlind: req.SmallBlind, BigBlind: req.BigBlind, MaxPlayers: req.MaxPlayers,
		StartingStack: req.StartingStack, TurnTimerSeconds: req.TurnTimerSeconds,
	})
	if err != nil {
		return CreateTableResponse{}, rpcerr.Unavailable("create table: %v", err)
	}
	return CreateTableResponse{TableID: t.ID}, nil
}

func (g *GameServer) JoinTable(_ context.Context, req JoinTableRequest) error {
	t, ok := g.Tables.Get(req.TableID)
	if !ok {
		return rpcerr.NotFound("table %s not found", req.TableID)
	}
	if err := t.Join(req.SeatID, req.UserID); err != nil {
		return rpcerr.InvalidArgument("%v", err)
	}
	_ = g.Tables.Persist(t)
	g.PublishTablePatch(req.TableID, t.Seats())
	return nil
}

func (g *GameServer) LeaveTable(_ context.Context, req LeaveTableRequest) error {
	t, ok := g.Tables.Get(req.TableID)
	if !ok {
		return rpcerr.NotFound("table %s not found", req.TableID)
	}
	if err := t.Leave(req.SeatID); err != nil {
		return rpcerr.InvalidArgument("%v", err)
	}
	_ = g.Tables.Persist(t)
	g.PublishTablePatch(req.TableID, t.Seats())
	return nil
}

func (g *GameServer) SetReady(_ context.Context, req SetReadyRequest) error {
	t, ok := g.Tables.Get(req.TableID)
	if !ok {
		return rpcerr.NotFound("table %s not found", req.TableID)
	}
	if err := t.SetReady(req.SeatID, req.Ready); err != nil {
		return rpcerr.InvalidArgument("%v", err)
	}
	_ = g.Tables.Persist(t)
	g.PublishTablePatch(req.TableID, t.Seats())

	hand, events, err := t.MaybeStartHand(time.Now())
	if err != nil || hand == nil {
		return nil
	}
	_, _ = g.AppendAndPublish(req.TableID, hand.ID, events)
	g.PublishTablePatch(req.TableID, EventsToViews(events))
	return nil
}

func (g *GameServer) GetHoleCards(_ context.Context, req GetHoleCardsRequest) (GetHoleCardsResponse, error) {
	t, ok := g.Tables.Get(req.TableID)
	if !ok {
		return GetHoleCardsResponse{}, rpcerr.NotFound("table %s not found", req.TableID)
	}
	seatID, cards, seated := t.HoleCardsForUser(req.UserID)
	if !seated {
		return GetHoleCardsResponse{}, rpcerr.Forbidden("user %s is not seated at table %s", req.UserID, req.TableID)
	}
	return GetHoleCardsResponse{SeatID: seatID, Cards: cards}, nil
}

func (g *GameServer) ListOwnedTables(_ context.Context, req ListOwnedTablesRequest) ([]any, error) {
	listing := g.Tables.ListOwnedTables(req.UserID)
	out := make([]any, len(listing))
	for i, l := range listing {
		out[i] = l
	}
	return out, nil
}

// EventsToViews converts engine events into their wire-safe projection.
func EventsToViews(events []engine.Event) []EventView {
	out := make([]EventView, len(events))
	for i, ev := range events {
		out[i] = EventView{Type: string(ev.Type), Seat: ev.Seat, Payload: ev.Payload, Ts: ev.Ts.UnixMilli()}
	}
	return out
}
