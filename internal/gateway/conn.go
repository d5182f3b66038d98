package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pokercore/internal/ids"
	"pokercore/internal/statemachine"
)

// LifecycleState names the connection lifecycle state, mirrored 1:1 onto
// the statemachine.StateFn driving conn.machine.
type LifecycleState string

const (
	StateConnecting   LifecycleState = "connecting"
	StateAuthenticated LifecycleState = "authenticated"
	StateSubscribed    LifecycleState = "subscribed"
	StateDraining      LifecycleState = "draining"
	StateClosed        LifecycleState = "closed"
)

// Conn is one authenticated client WebSocket, owned by exactly one gateway
// instance for its whole life. Subscriptions it holds are also mirrored
// into the cross-instance Subscription Index (see registry.go).
type Conn struct {
	ID         string
	InstanceID string
	UserID     string
	OpenedAt   time.Time

	ws *websocket.Conn

	mu            sync.Mutex
	state         LifecycleState
	machine       *statemachine.Machine[Conn]
	subscriptions map[string]struct{} // channel key -> member
	seats         map[string]int      // tableId -> seatId, learned on subscribe
	lastPong      time.Time
	lastActivity  time.Time

	out   chan []byte
	queue *outboundQueue

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn, userID, instanceID string, queueCap int) *Conn {
	now := time.Now()
	c := &Conn{
		ID:            ids.NewConnectionID(),
		InstanceID:    instanceID,
		UserID:        userID,
		OpenedAt:      now,
		ws:            ws,
		state:         StateConnecting,
		subscriptions: make(map[string]struct{}),
		seats:         make(map[string]int),
		lastPong:      now,
		lastActivity:  now,
		out:           make(chan []byte, queueCap),
		closed:        make(chan struct{}),
	}
	c.queue = newOutboundQueue(queueCap)
	c.machine = statemachine.New(c, stateConnecting)
	return c
}

// stateConnecting/stateAuthenticated/... are entry actions for each
// lifecycle state, run once via Dispatch when transitionTo moves the
// machine there. They self-loop (return themselves) since external events,
// not internal polling, drive further transitions.
func stateConnecting(c *Conn, emit func(string, statemachine.Event)) statemachine.StateFn[Conn] {
	if emit != nil {
		emit(string(StateConnecting), statemachine.StateEntered)
	}
	return stateConnecting
}

func stateAuthenticated(c *Conn, emit func(string, statemachine.Event)) statemachine.StateFn[Conn] {
	if emit != nil {
		emit(string(StateAuthenticated), statemachine.StateEntered)
	}
	return stateAuthenticated
}

func stateSubscribed(c *Conn, emit func(string, statemachine.Event)) statemachine.StateFn[Conn] {
	if emit != nil {
		emit(string(StateSubscribed), statemachine.StateEntered)
	}
	return stateSubscribed
}

func stateDraining(c *Conn, emit func(string, statemachine.Event)) statemachine.StateFn[Conn] {
	if emit != nil {
		emit(string(StateDraining), statemachine.StateEntered)
	}
	return stateDraining
}

func stateClosed(c *Conn, emit func(string, statemachine.Event)) statemachine.StateFn[Conn] {
	if emit != nil {
		emit(string(StateClosed), statemachine.StateEntered)
	}
	return nil
}

func stateFnFor(s LifecycleState) statemachine.StateFn[Conn] {
	switch s {
	case StateAuthenticated:
		return stateAuthenticated
	case StateSubscribed:
		return stateSubscribed
	case StateDraining:
		return stateDraining
	case StateClosed:
		return stateClosed
	default:
		return stateConnecting
	}
}

// transitionTo moves the connection to next, honoring the contract that
// any state may move to closed, authenticated only follows connecting, and
// subscribed only follows authenticated (or itself, for additional
// subscribes).
func (c *Conn) transitionTo(next LifecycleState) bool {
	c.mu.Lock()
	cur := c.state
	ok := next == StateClosed ||
		(cur == StateConnecting && next == StateAuthenticated) ||
		(cur == StateAuthenticated && (next == StateSubscribed || next == StateDraining)) ||
		(cur == StateSubscribed && (next == StateSubscribed || next == StateDraining))
	if ok {
		c.state = next
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.machine.Set(stateFnFor(next))
	c.machine.Dispatch(nil)
	return true
}

func (c *Conn) currentState() LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) addSubscription(key string) {
	c.mu.Lock()
	c.subscriptions[key] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) removeSubscription(key string) {
	c.mu.Lock()
	delete(c.subscriptions, key)
	c.mu.Unlock()
}

func (c *Conn) subscribedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.subscriptions))
	for k := range c.subscriptions {
		keys = append(keys, k)
	}
	return keys
}

// setSeat records the seat this connection's user occupies at tableID,
// learned from a GetHoleCards round trip (on table subscribe and on each
// HandStarted patch) that returned hole cards, i.e. while a hand is live.
func (c *Conn) setSeat(tableID string, seatID int) {
	c.mu.Lock()
	c.seats[tableID] = seatID
	c.mu.Unlock()
}

// seatFor reports the cached seat this connection's user occupies at
// tableID, if any was learned yet.
func (c *Conn) seatFor(tableID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seatID, ok := c.seats[tableID]
	return seatID, ok
}

func (c *Conn) touchPong() {
	c.mu.Lock()
	c.lastPong = time.Now()
	c.mu.Unlock()
}

func (c *Conn) touchActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Conn) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Conn) pongDeadlinePassed(timeout time.Duration, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastPong) > timeout
}

// enqueue attempts a non-blocking send. It reports false (backpressured)
// when the bounded outbound queue is full, per the default 1 MiB/256
// message cap.
func (c *Conn) enqueue(payload []byte) bool {
	if !c.queue.admit(len(payload)) {
		return false
	}
	select {
	case c.out <- payload:
		return true
	default:
		c.queue.release(len(payload))
		return false
	}
}

func (c *Conn) closeNotify() <-chan struct{} { return c.closed }

func (c *Conn) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}
