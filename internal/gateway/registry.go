package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry is the per-instance connection map plus the cross-instance
// Subscription Index mirror: writes flow to the shared fabric (atomic
// set-add/set-remove), reads served from a local mirror so the outbound
// fan-out hot path never takes a network hop.
type Registry struct {
	instanceID string
	rdb        *redis.Client

	mu          sync.RWMutex
	conns       map[string]*Conn            // connectionId -> conn
	byUser      map[string]map[string]*Conn // userId -> connectionId -> conn
	localIndex  map[string]map[string]*Conn // channelKey -> connectionId -> conn
}

func NewRegistry(instanceID string, rdb *redis.Client) *Registry {
	return &Registry{
		instanceID: instanceID,
		rdb:        rdb,
		conns:      make(map[string]*Conn),
		byUser:     make(map[string]map[string]*Conn),
		localIndex: make(map[string]map[string]*Conn),
	}
}

func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
	if r.byUser[c.UserID] == nil {
		r.byUser[c.UserID] = make(map[string]*Conn)
	}
	r.byUser[c.UserID][c.ID] = c
}

// Remove drops c from every local map and, best-effort, from every shared
// subscription key it held — called exactly once per connection, by
// whichever of close-the-socket or heartbeat-timeout observes it first.
func (r *Registry) Remove(ctx context.Context, c *Conn) {
	r.mu.Lock()
	delete(r.conns, c.ID)
	if m, ok := r.byUser[c.UserID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(r.byUser, c.UserID)
		}
	}
	for key := range r.localIndex {
		delete(r.localIndex[key], c.ID)
	}
	r.mu.Unlock()

	for _, key := range c.subscribedKeys() {
		r.removeShared(ctx, key, c.ID)
	}
}

func (r *Registry) UserOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Subscribe adds c to channelKey's local mirror and the shared index, with
// retry-with-backoff on the shared write per the spec's transient-fabric
// resilience requirement.
func (r *Registry) Subscribe(ctx context.Context, channelKey string, c *Conn) error {
	r.mu.Lock()
	if r.localIndex[channelKey] == nil {
		r.localIndex[channelKey] = make(map[string]*Conn)
	}
	r.localIndex[channelKey][c.ID] = c
	r.mu.Unlock()
	c.addSubscription(channelKey)

	return r.withBackoff(ctx, func() error {
		return r.rdb.SAdd(ctx, sharedSubsKey(channelKey), subMember(c.ID, r.instanceID)).Err()
	})
}

func (r *Registry) Unsubscribe(ctx context.Context, channelKey string, c *Conn) error {
	r.mu.Lock()
	if m, ok := r.localIndex[channelKey]; ok {
		delete(m, c.ID)
	}
	r.mu.Unlock()
	c.removeSubscription(channelKey)
	return r.removeShared(ctx, channelKey, c.ID)
}

func (r *Registry) removeShared(ctx context.Context, channelKey, connID string) error {
	return r.withBackoff(ctx, func() error {
		return r.rdb.SRem(ctx, sharedSubsKey(channelKey), subMember(connID, r.instanceID)).Err()
	})
}

// LocalSubscribers returns every connection on this instance subscribed to
// channelKey, used for pub/sub fan-out.
func (r *Registry) LocalSubscribers(channelKey string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.localIndex[channelKey]
	out := make([]*Conn, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// Reconcile rebuilds channelKey's shared membership from this instance's
// local mirror, called after a fabric outage recovers.
func (r *Registry) Reconcile(ctx context.Context, channelKey string) error {
	r.mu.RLock()
	members := make([]string, 0, len(r.localIndex[channelKey]))
	for id := range r.localIndex[channelKey] {
		members = append(members, subMember(id, r.instanceID))
	}
	r.mu.RUnlock()
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.withBackoff(ctx, func() error {
		return r.rdb.SAdd(ctx, sharedSubsKey(channelKey), args...).Err()
	})
}

func (r *Registry) withBackoff(ctx context.Context, op func() error) error {
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}

func sharedSubsKey(channelKey string) string { return "subs:" + channelKey }
func subMember(connID, instanceID string) string { return connID + "@" + instanceID }
