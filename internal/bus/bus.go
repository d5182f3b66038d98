// Package bus is the cross-instance pub/sub fabric every gateway instance
// subscribes to on one well-known channel, grounded in the redis.Subscribe
// pattern from the swarm gateway's internal event relay.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// WellKnownChannel is the single redis pub/sub channel every gateway
// instance subscribes to; routing within it happens on Envelope.Channel.
const WellKnownChannel = "poker:events"

// Envelope is one fan-out frame. SourceID lets a receiving instance
// recognize and drop its own echo; Seq is monotonic per (Channel, ScopeID).
type Envelope struct {
	Channel  string          `json:"channel"`
	ScopeID  string          `json:"scopeId"`
	Payload  json.RawMessage `json:"payload"`
	SourceID string          `json:"sourceId"`
	Seq      uint64          `json:"seq"`
}

// Bus wraps a redis client for envelope publish/subscribe and hands out
// monotonic per-(channel,scope) sequence numbers.
type Bus struct {
	rdb        *redis.Client
	instanceID string

	mu   sync.Mutex
	seqs map[string]uint64
}

func New(rdb *redis.Client, instanceID string) *Bus {
	return &Bus{rdb: rdb, instanceID: instanceID, seqs: make(map[string]uint64)}
}

// NextSeq allocates the next sequence number for a (channel, scopeId) pair.
func (b *Bus) NextSeq(channel, scopeID string) uint64 {
	key := channel + ":" + scopeID
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seqs[key]++
	return b.seqs[key]
}

// Publish assigns the next seq and publishes an envelope carrying payload.
func (b *Bus) Publish(ctx context.Context, channel, scopeID string, payload any) (uint64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("bus: marshal payload: %w", err)
	}
	seq := b.NextSeq(channel, scopeID)
	env := Envelope{Channel: channel, ScopeID: scopeID, Payload: raw, SourceID: b.instanceID, Seq: seq}
	data, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("bus: marshal envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, WellKnownChannel, data).Err(); err != nil {
		return 0, fmt.Errorf("bus: publish: %w", err)
	}
	return seq, nil
}

// Subscribe opens the well-known channel subscription and returns a
// channel of envelopes already filtered for self-echo. Close the returned
// func to unsubscribe.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Envelope, func(), error) {
	sub := b.rdb.Subscribe(ctx, WellKnownChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("bus: subscribe: %w", err)
	}

	out := make(chan Envelope, 256)
	dropped := new(atomic.Uint64)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					continue
				}
				if env.SourceID == b.instanceID {
					continue // self-echo: this instance already delivered locally
				}
				select {
				case out <- env:
				default:
					dropped.Add(1) // slow consumer; caller reconciles via resync-snapshot
				}
			}
		}
	}()

	return out, func() { sub.Close() }, nil
}
