package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// Presence tracks each user's status as a function of open connections
// plus an idle timer, last-writer-wins keyed by userId on the shared
// fabric's presence hash.
type Presence struct {
	rdb        *redis.Client
	idleAfter  time.Duration

	mu        sync.Mutex
	lastSeen  map[string]time.Time
}

func NewPresence(rdb *redis.Client, idleAfter time.Duration) *Presence {
	return &Presence{rdb: rdb, idleAfter: idleAfter, lastSeen: make(map[string]time.Time)}
}

func (p *Presence) Touch(userID string) {
	p.mu.Lock()
	p.lastSeen[userID] = time.Now()
	p.mu.Unlock()
}

func (p *Presence) SetStatus(ctx context.Context, userID string, status PresenceStatus) error {
	return p.rdb.HSet(ctx, "presence", userID, string(status)).Err()
}

func (p *Presence) Status(ctx context.Context, userID string) (PresenceStatus, error) {
	s, err := p.rdb.HGet(ctx, "presence", userID).Result()
	if err == redis.Nil {
		return PresenceOffline, nil
	}
	if err != nil {
		return "", err
	}
	return PresenceStatus(s), nil
}

// ScanIdle returns every tracked user idle longer than idleAfter, for the
// supervisor to transition to away.
func (p *Presence) ScanIdle(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for userID, seen := range p.lastSeen {
		if now.Sub(seen) > p.idleAfter {
			out = append(out, userID)
		}
	}
	return out
}

func (p *Presence) Forget(userID string) {
	p.mu.Lock()
	delete(p.lastSeen, userID)
	p.mu.Unlock()
}
