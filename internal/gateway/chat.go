package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const chatRetention = 24 * time.Hour

// ChatHub implements the base spec's chat channel: rate-limited,
// mute-filtered publish, plus a 24h replay buffer backed by the shared KV
// fabric's chat:history:{tableId} bounded list.
type ChatHub struct {
	rdb *redis.Client
}

func NewChatHub(rdb *redis.Client) *ChatHub { return &ChatHub{rdb: rdb} }

type chatEntry struct {
	From string `json:"from"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
	Seq  uint64 `json:"seq"`
}

// Muted reports whether userID is on tableID's mute list.
func (h *ChatHub) Muted(ctx context.Context, tableID, userID string) (bool, error) {
	n, err := h.rdb.SIsMember(ctx, muteKey(tableID), userID).Result()
	return n, err
}

func (h *ChatHub) Mute(ctx context.Context, tableID, userID string) error {
	return h.rdb.SAdd(ctx, muteKey(tableID), userID).Err()
}

func (h *ChatHub) Unmute(ctx context.Context, tableID, userID string) error {
	return h.rdb.SRem(ctx, muteKey(tableID), userID).Err()
}

// Append records a chat message under its bus seq in the replay buffer.
// The list keeps its newest 500 entries, and every append resets the
// list's expiry to chatRetention.
func (h *ChatHub) Append(ctx context.Context, tableID, from, text string, ts time.Time, seq uint64) error {
	entry, err := json.Marshal(chatEntry{From: from, Text: text, Ts: ts.UnixMilli(), Seq: seq})
	if err != nil {
		return err
	}
	key := historyKey(tableID)
	pipe := h.rdb.TxPipeline()
	pipe.RPush(ctx, key, entry)
	pipe.Expire(ctx, key, chatRetention)
	pipe.LTrim(ctx, key, -500, -1)
	_, err = pipe.Exec(ctx)
	return err
}

// Replay returns every buffered chat entry for tableID with seq >
// sinceSeq, in append order, for delivery on subscribe / resume.
func (h *ChatHub) Replay(ctx context.Context, tableID string, sinceSeq uint64) ([]ChatMessagePayload, error) {
	raw, err := h.rdb.LRange(ctx, historyKey(tableID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ChatMessagePayload, 0, len(raw))
	for _, r := range raw {
		var e chatEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		if e.Seq <= sinceSeq {
			continue
		}
		out = append(out, ChatMessagePayload{From: e.From, Text: e.Text, Ts: e.Ts})
	}
	return out, nil
}

func muteKey(tableID string) string    { return "chat:mute:" + tableID }
func historyKey(tableID string) string { return "chat:history:" + tableID }
