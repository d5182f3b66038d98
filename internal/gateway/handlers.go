package gateway

import (
	"context"
	"encoding/json"
	"time"

	"pokercore/internal/engine"
	"pokercore/internal/rpc"
)

func (g *Gateway) handleSubscribe(c *Conn, msg ClientMessage) {
	var p SubscribePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		g.sendError(c, "invalid_argument", "malformed Subscribe payload", 0)
		return
	}
	kind := ChannelKind(p.Channel)
	if !g.authorizeSubscribe(c, kind, p.ScopeID) {
		g.sendError(c, "forbidden", "not authorized for this channel", 0)
		return
	}

	c.transitionTo(StateSubscribed)
	key := ChannelKey(kind, p.ScopeID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Registry.Subscribe(ctx, key, c); err != nil {
		g.log.Warnf("subscribe %s for %s: %v", key, c.ID, err)
	}

	if kind == ChannelTable {
		g.sendTableSnapshot(c, p.ScopeID)
		g.sendHoleCards(c, p.ScopeID)
	}
	if kind == ChannelChat {
		g.replayChat(c, p.ScopeID, 0)
	}
}

func (g *Gateway) authorizeSubscribe(c *Conn, kind ChannelKind, scopeID string) bool {
	switch kind {
	case ChannelLobby:
		return true // any authenticated user
	case ChannelTable, ChannelChat:
		// Table and chat subscribes are accepted for any non-empty scope
		// id. No seat-membership or spectator check is made here, and
		// GetTableSnapshot returns the seat list to any caller, so a
		// non-member is not refused on subscribe.
		return scopeID != ""
	default:
		return false
	}
}

func (g *Gateway) handleUnsubscribe(c *Conn, msg ClientMessage) {
	var p SubscribePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		g.sendError(c, "invalid_argument", "malformed Unsubscribe payload", 0)
		return
	}
	key := ChannelKey(ChannelKind(p.Channel), p.ScopeID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Registry.Unsubscribe(ctx, key, c); err != nil {
		g.log.Warnf("unsubscribe %s for %s: %v", key, c.ID, err)
	}
}

func (g *Gateway) sendTableSnapshot(c *Conn, tableID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := g.Game.GetTableSnapshot(ctx, rpc.GetTableSnapshotRequest{TableID: tableID})
	if err != nil {
		g.sendError(c, "not_found", "table not found", 0)
		return
	}
	g.send(c, ServerMessage{Type: MsgSnapshot, TableID: tableID, Payload: SnapshotPayload{TableID: tableID, State: redactForSeat(snap, c.UserID)}})
}

// redactForSeat is a deliberate passthrough: GetTableSnapshot's SeatView
// never carries hole cards in the first place (see table.SeatView), so
// there is nothing to strip here. Hole cards reach a connection only
// through sendHoleCards, a private per-user pull never broadcast to a
// channel's other subscribers.
func redactForSeat(snapshot any, userID string) any {
	return snapshot
}

// sendHoleCards privately delivers userID's own hole cards for tableID, if
// userID is seated there and a hand is live. Never call this on behalf of
// a channel's other subscribers.
func (g *Gateway) sendHoleCards(c *Conn, tableID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := g.Game.GetHoleCards(ctx, rpc.GetHoleCardsRequest{TableID: tableID, UserID: c.UserID})
	if err != nil || len(resp.Cards) == 0 {
		return
	}
	c.setSeat(tableID, resp.SeatID)
	g.send(c, ServerMessage{Type: MsgHoleCards, TableID: tableID, Payload: HoleCardsPayload{SeatID: resp.SeatID, Cards: resp.Cards}})
}

func (g *Gateway) handleChatSend(c *Conn, msg ClientMessage) {
	var p ChatSendPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		g.sendError(c, "invalid_argument", "malformed ChatSend payload", 0)
		return
	}
	if !g.RateLimit.Allow(c.UserID, ChannelChat, "send") {
		g.sendError(c, "rate_limited", "chat rate limit exceeded", g.RateLimit.RetryAfterMs(c.UserID, ChannelChat, "send"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	muted, err := g.Chat.Muted(ctx, p.TableID, c.UserID)
	if err != nil {
		g.sendError(c, "service_unavailable", "chat unavailable", 0)
		return
	}
	if muted {
		g.sendError(c, "forbidden", "muted on this table", 0)
		return
	}

	key := ChannelKey(ChannelChat, p.TableID)
	seq, err := g.Bus.Publish(ctx, string(ChannelChat), p.TableID, ChatMessagePayload{From: c.UserID, Text: p.Text, Ts: time.Now().UnixMilli()})
	if err != nil {
		g.sendError(c, "service_unavailable", "chat publish failed", 0)
		return
	}
	_ = g.Chat.Append(ctx, p.TableID, c.UserID, p.Text, time.Now(), seq)
	for _, sub := range g.Registry.LocalSubscribers(key) {
		g.send(sub, ServerMessage{Type: MsgChatMessage, TableID: p.TableID, Seq: seq, Payload: ChatMessagePayload{From: c.UserID, Text: p.Text, Ts: time.Now().UnixMilli()}})
	}
}

func (g *Gateway) replayChat(c *Conn, tableID string, sinceSeq uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := g.Chat.Replay(ctx, tableID, sinceSeq)
	if err != nil {
		return
	}
	for _, e := range entries {
		g.send(c, ServerMessage{Type: MsgChatMessage, TableID: tableID, Payload: e})
	}
}

func (g *Gateway) handleAction(c *Conn, msg ClientMessage) {
	var p ActionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		g.sendError(c, "invalid_argument", "malformed Action payload", 0)
		return
	}
	if !g.RateLimit.Allow(c.UserID, ChannelTable, "action") {
		g.sendError(c, "rate_limited", "action rate limit exceeded", g.RateLimit.RetryAfterMs(c.UserID, ChannelTable, "action"))
		return
	}

	actionType, ok := engine.ParseActionType(p.Action)
	if !ok {
		g.sendError(c, "invalid_argument", "unknown action type", 0)
		return
	}

	seatID, ok := c.seatFor(p.TableID)
	if !ok {
		g.sendError(c, "forbidden", "not seated at this table; subscribe first", 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := g.Game.SubmitAction(ctx, rpc.SubmitActionRequest{
		TableID: p.TableID,
		HandID:  p.HandID,
		SeatID:  seatID,
		Action:  engine.Action{Type: actionType, Amount: p.Amount},
	})
	if err != nil {
		g.sendError(c, "engine_rejected", err.Error(), 0)
		return
	}
	if !resp.Accepted {
		g.sendError(c, "engine_rejected", resp.RejectReason, 0)
	}
}

func (g *Gateway) handleResume(c *Conn, msg ClientMessage) {
	var p ResumePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		g.sendError(c, "invalid_argument", "malformed Resume payload", 0)
		return
	}
	for _, cursor := range p.Cursors {
		if ChannelKind(cursor.Channel) == ChannelChat {
			g.replayChat(c, cursor.ScopeID, cursor.LastSeq)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		hand, err := g.Event.GetHandSnapshot(ctx, rpc.GetHandSnapshotRequest{HandID: cursor.ScopeID})
		cancel()
		if err != nil {
			g.sendTableSnapshot(c, cursor.ScopeID)
			continue
		}
		g.send(c, ServerMessage{Type: MsgSnapshot, TableID: cursor.ScopeID, Payload: SnapshotPayload{TableID: cursor.ScopeID, State: hand}})
	}
}
