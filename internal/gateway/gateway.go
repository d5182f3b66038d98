package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"pokercore/internal/auth"
	"pokercore/internal/bus"
	"pokercore/internal/ids"
	"pokercore/internal/rpc"
)

// Gateway is one realtime gateway instance: it owns every Conn it
// accepted, mirrors their subscriptions into Registry, consumes the
// cross-instance Bus, and forwards client actions to the Game/Event RPC
// surface.
type Gateway struct {
	InstanceID string
	Verifier   *auth.Verifier
	Registry   *Registry
	Bus        *bus.Bus
	Presence   *Presence
	Chat       *ChatHub
	RateLimit  *RateLimiter
	Game       rpc.GameService
	Event      rpc.EventService

	PingInterval  time.Duration
	PongTimeout   time.Duration
	QueueMessages int

	upgrader websocket.Upgrader
	log      slog.Logger
}

func New(instanceID string, verifier *auth.Verifier, rdb *redis.Client, game rpc.GameService, event rpc.EventService, log slog.Logger) *Gateway {
	return &Gateway{
		InstanceID:    instanceID,
		Verifier:      verifier,
		Registry:      NewRegistry(instanceID, rdb),
		Bus:           bus.New(rdb, instanceID),
		Presence:      NewPresence(rdb, 5*time.Minute),
		Chat:          NewChatHub(rdb),
		RateLimit:     NewRateLimiter(5, 10),
		Game:          game,
		Event:         event,
		PingInterval:  defaultPingInterval,
		PongTimeout:   defaultPongTimeout,
		QueueMessages: DefaultQueueMessageCap(),
		upgrader:      websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		log:           log,
	}
}

// ServeWS upgrades the HTTP request to a WebSocket, authenticates the
// bearer token, and runs the connection's pumps until it closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, err := g.Verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "auth_denied", http.StatusUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnf("upgrade failed: %v", err)
		return
	}

	c := newConn(ws, userID, g.InstanceID, g.QueueMessages)
	c.transitionTo(StateAuthenticated)
	g.Registry.Add(c)
	g.Presence.Touch(userID)
	_ = g.Presence.SetStatus(context.Background(), userID, PresenceOnline)

	go g.heartbeatLoop(c, g.PingInterval, g.PongTimeout)
	go g.writePump(c)
	g.sendWelcome(c)
	g.readPump(c)
}

func (g *Gateway) sendWelcome(c *Conn) {
	g.send(c, ServerMessage{Type: MsgWelcome, Payload: WelcomePayload{SessionID: ids.NewSessionID(), ServerTime: time.Now().UnixMilli()}})
}

// send encodes msg and enqueues it on c's outbound queue; a full queue
// closes the connection with code backpressure, per spec.
func (g *Gateway) send(c *Conn, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		g.log.Errorf("marshal outbound message: %v", err)
		return
	}
	if !c.enqueue(data) {
		g.closeWithCode(c, "backpressure")
	}
}

func (g *Gateway) sendError(c *Conn, code, message string, retryAfterMs int64) {
	g.send(c, ServerMessage{Type: MsgError, Payload: ErrorPayload{Code: code, Message: message, RetryAfterMs: retryAfterMs}})
}

func (g *Gateway) writePump(c *Conn) {
	defer c.ws.Close()
	for {
		select {
		case <-c.closeNotify():
			return
		case payload, ok := <-c.out:
			if !ok {
				return
			}
			c.queue.release(len(payload))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				g.closeConn(c, "write_error")
				return
			}
		}
	}
}

func (g *Gateway) readPump(c *Conn) {
	defer g.closeConn(c, "peer_close")
	c.ws.SetPongHandler(func(string) error { c.touchPong(); return nil })
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.touchActivity()
		g.Presence.Touch(c.UserID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.sendError(c, "invalid_argument", "malformed frame", 0)
			continue
		}
		g.dispatch(c, msg)
	}
}

func (g *Gateway) dispatch(c *Conn, msg ClientMessage) {
	switch msg.Type {
	case MsgPing:
		g.send(c, ServerMessage{Type: MsgPong})
	case MsgSubscribe:
		g.handleSubscribe(c, msg)
	case MsgUnsubscribe:
		g.handleUnsubscribe(c, msg)
	case MsgChatSend:
		g.handleChatSend(c, msg)
	case MsgAction:
		g.handleAction(c, msg)
	case MsgResume:
		g.handleResume(c, msg)
	default:
		g.sendError(c, "invalid_argument", "unknown message type", 0)
	}
}

// closeConn removes c from the registry and closes its socket exactly
// once, satisfying the "simultaneous close and heartbeat timeout" boundary
// behavior: whichever caller observes it first does the work.
func (g *Gateway) closeConn(c *Conn, reason string) {
	first := false
	c.closeOnce.Do(func() {
		close(c.closed)
		first = true
	})
	if !first {
		return
	}
	c.transitionTo(StateClosed)
	g.Registry.Remove(context.Background(), c)
	if !g.Registry.UserOnline(c.UserID) {
		g.Presence.Forget(c.UserID)
		_ = g.Presence.SetStatus(context.Background(), c.UserID, PresenceOffline)
	}
	_ = c.ws.Close()
	g.log.Debugf("connection %s closed: %s", c.ID, reason)
}

func (g *Gateway) closeWithCode(c *Conn, code string) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(4000, code), time.Now().Add(time.Second))
	g.closeConn(c, code)
}

// Run consumes the shared bus until ctx is canceled, fanning envelopes out
// to this instance's locally subscribed connections.
func (g *Gateway) Run(ctx context.Context) error {
	envelopes, cancel, err := g.Bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-envelopes:
			if !ok {
				return nil
			}
			g.fanOut(env)
		}
	}
}

func (g *Gateway) fanOut(env bus.Envelope) {
	key := ChannelKey(ChannelKind(env.Channel), env.ScopeID)
	subs := g.Registry.LocalSubscribers(key)

	if ChannelKind(env.Channel) == ChannelChat {
		var chat ChatMessagePayload
		_ = json.Unmarshal(env.Payload, &chat)
		for _, c := range subs {
			g.send(c, ServerMessage{Type: MsgChatMessage, TableID: env.ScopeID, Seq: env.Seq, Payload: chat})
		}
		return
	}

	var patch any
	_ = json.Unmarshal(env.Payload, &patch)
	for _, c := range subs {
		g.send(c, ServerMessage{Type: MsgTablePatch, TableID: env.ScopeID, Seq: env.Seq, Payload: TablePatchPayload{Patch: patch}})
	}
	if handStarted(env.Payload) {
		for _, c := range subs {
			g.sendHoleCards(c, env.ScopeID)
		}
	}
}

// handStarted reports whether a table-channel patch contains a HandStarted
// event, the trigger to re-pull hole cards for every seated subscriber
// since a new hand deals a fresh set.
func handStarted(payload json.RawMessage) bool {
	var events []struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(payload, &events) != nil {
		return false
	}
	for _, ev := range events {
		if ev.Type == "HandStarted" {
			return true
		}
	}
	return false
}
