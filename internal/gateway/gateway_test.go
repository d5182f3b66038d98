package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokercore/internal/bus"
	"pokercore/internal/engine"
	"pokercore/internal/rpc"
)

type fakeGameService struct {
	submitResp SubmitActionCapture
	holeCards  rpc.GetHoleCardsResponse
}

type SubmitActionCapture struct {
	req      rpc.SubmitActionRequest
	resp     rpc.SubmitActionResponse
	err      error
	received bool
}

func (f *fakeGameService) SubmitAction(ctx context.Context, req rpc.SubmitActionRequest) (rpc.SubmitActionResponse, error) {
	f.submitResp.req = req
	f.submitResp.received = true
	return f.submitResp.resp, f.submitResp.err
}
func (f *fakeGameService) GetTableSnapshot(ctx context.Context, req rpc.GetTableSnapshotRequest) (any, error) {
	return map[string]string{"tableId": req.TableID}, nil
}
func (f *fakeGameService) CreateTable(ctx context.Context, req rpc.CreateTableRequest) (rpc.CreateTableResponse, error) {
	return rpc.CreateTableResponse{}, nil
}
func (f *fakeGameService) JoinTable(ctx context.Context, req rpc.JoinTableRequest) error { return nil }
func (f *fakeGameService) LeaveTable(ctx context.Context, req rpc.LeaveTableRequest) error {
	return nil
}
func (f *fakeGameService) SetReady(ctx context.Context, req rpc.SetReadyRequest) error { return nil }
func (f *fakeGameService) ListOwnedTables(ctx context.Context, req rpc.ListOwnedTablesRequest) ([]any, error) {
	return nil, nil
}
func (f *fakeGameService) GetHoleCards(ctx context.Context, req rpc.GetHoleCardsRequest) (rpc.GetHoleCardsResponse, error) {
	return f.holeCards, nil
}

type fakeEventService struct{}

func (fakeEventService) GetHandSnapshot(ctx context.Context, req rpc.GetHandSnapshotRequest) (any, error) {
	return nil, nil
}

func newTestGateway(game *fakeGameService) *Gateway {
	return &Gateway{
		InstanceID: "instance-1",
		Registry:   NewRegistry("instance-1", nil),
		RateLimit:  NewRateLimiter(100, 100),
		Game:       game,
		Event:      fakeEventService{},
		log:        slog.Disabled,
	}
}

func TestHandleAction_RejectsWhenNotSeated(t *testing.T) {
	g := newTestGateway(&fakeGameService{})
	c := newConn(nil, "alice", "instance-1", 16)

	payload, _ := json.Marshal(ActionPayload{TableID: "t1", Action: "fold"})
	g.handleAction(c, ClientMessage{Type: MsgAction, Payload: payload})

	select {
	case raw := <-c.out:
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, MsgError, msg.Type)
	default:
		t.Fatal("expected an error frame for an unseated action")
	}
}

func TestHandleAction_ForwardsToGameServiceWhenSeated(t *testing.T) {
	game := &fakeGameService{submitResp: SubmitActionCapture{resp: rpc.SubmitActionResponse{Accepted: true}}}
	g := newTestGateway(game)
	c := newConn(nil, "alice", "instance-1", 16)
	c.setSeat("t1", 2)

	payload, _ := json.Marshal(ActionPayload{TableID: "t1", HandID: "h1", Action: "call", Amount: 20})
	g.handleAction(c, ClientMessage{Type: MsgAction, Payload: payload})

	require.True(t, game.submitResp.received)
	assert.Equal(t, 2, game.submitResp.req.SeatID)
	assert.Equal(t, engine.Call, game.submitResp.req.Action.Type)
	assert.Equal(t, int64(20), game.submitResp.req.Action.Amount)
}

func TestHandleAction_RejectsUnknownActionType(t *testing.T) {
	game := &fakeGameService{}
	g := newTestGateway(game)
	c := newConn(nil, "alice", "instance-1", 16)
	c.setSeat("t1", 0)

	payload, _ := json.Marshal(ActionPayload{TableID: "t1", Action: "teleport"})
	g.handleAction(c, ClientMessage{Type: MsgAction, Payload: payload})

	assert.False(t, game.submitResp.received, "an unparseable action type must never reach the Game service")
}

func TestHandleAction_RateLimitedReturnsErrorWithoutCallingGame(t *testing.T) {
	game := &fakeGameService{}
	g := newTestGateway(game)
	g.RateLimit = NewRateLimiter(0, 0)
	c := newConn(nil, "alice", "instance-1", 16)
	c.setSeat("t1", 0)

	payload, _ := json.Marshal(ActionPayload{TableID: "t1", Action: "fold"})
	g.handleAction(c, ClientMessage{Type: MsgAction, Payload: payload})

	assert.False(t, game.submitResp.received)
	select {
	case raw := <-c.out:
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, MsgError, msg.Type)
	default:
		t.Fatal("expected a rate_limited error frame")
	}
}

func TestAuthorizeSubscribe_LobbyAlwaysAllowed(t *testing.T) {
	g := newTestGateway(&fakeGameService{})
	c := newConn(nil, "alice", "instance-1", 16)
	assert.True(t, g.authorizeSubscribe(c, ChannelLobby, ""))
}

func TestAuthorizeSubscribe_TableRequiresScopeID(t *testing.T) {
	g := newTestGateway(&fakeGameService{})
	c := newConn(nil, "alice", "instance-1", 16)
	assert.False(t, g.authorizeSubscribe(c, ChannelTable, ""))
	assert.True(t, g.authorizeSubscribe(c, ChannelTable, "t1"))
}

func TestFanOut_TablePatchDeliveredToLocalSubscribers(t *testing.T) {
	g := newTestGateway(&fakeGameService{})
	c := newConn(nil, "alice", "instance-1", 16)
	g.Registry.Add(c)
	key := ChannelKey(ChannelTable, "t1")
	g.Registry.localIndex[key] = map[string]*Conn{c.ID: c}

	patch, _ := json.Marshal(map[string]string{"type": "x"})
	g.fanOut(bus.Envelope{Channel: "table", ScopeID: "t1", Seq: 7, Payload: patch})

	raw := <-c.out
	var msg ServerMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MsgTablePatch, msg.Type)
	assert.Equal(t, uint64(7), msg.Seq)
}

func TestFanOut_ChatPayloadDeliveredAsChatMessage(t *testing.T) {
	g := newTestGateway(&fakeGameService{})
	c := newConn(nil, "alice", "instance-1", 16)
	g.Registry.Add(c)
	key := ChannelKey(ChannelChat, "t1")
	g.Registry.localIndex[key] = map[string]*Conn{c.ID: c}

	chat, _ := json.Marshal(ChatMessagePayload{From: "bob", Text: "hi"})
	g.fanOut(bus.Envelope{Channel: "chat", ScopeID: "t1", Seq: 3, Payload: chat})

	raw := <-c.out
	var msg ServerMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MsgChatMessage, msg.Type)
}

func TestFanOut_HandStartedTriggersHoleCardsPull(t *testing.T) {
	game := &fakeGameService{holeCards: rpc.GetHoleCardsResponse{SeatID: 1, Cards: []engine.Card{{Rank: engine.Ace, Suit: engine.Spades}}}}
	g := newTestGateway(game)
	c := newConn(nil, "alice", "instance-1", 16)
	g.Registry.Add(c)
	key := ChannelKey(ChannelTable, "t1")
	g.Registry.localIndex[key] = map[string]*Conn{c.ID: c}

	events := []map[string]string{{"type": "HandStarted"}}
	patch, _ := json.Marshal(events)
	g.fanOut(bus.Envelope{Channel: "table", ScopeID: "t1", Seq: 1, Payload: patch})

	<-c.out // table patch frame
	raw := <-c.out // hole cards frame
	var msg ServerMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MsgHoleCards, msg.Type)
}

func TestHandStarted_DetectsEventInPayload(t *testing.T) {
	yes, _ := json.Marshal([]map[string]string{{"type": "HandStarted"}})
	no, _ := json.Marshal([]map[string]string{{"type": "ActionTaken"}})
	assert.True(t, handStarted(yes))
	assert.False(t, handStarted(no))
	assert.False(t, handStarted(json.RawMessage(`not json`)))
}
