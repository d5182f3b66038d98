package gateway

import (
	"sync"

	"github.com/pbnjay/memory"
)

const (
	defaultQueueMessages = 256
	defaultQueueBytes    = 1 << 20 // 1 MiB
)

// outboundQueue enforces the per-socket bounded queue: default 1 MiB or
// 256 messages, whichever is hit first. Exceeding it is a backpressure
// event, handled by the caller closing the socket with code backpressure.
type outboundQueue struct {
	mu        sync.Mutex
	maxBytes  int
	maxMsgs   int
	curBytes  int
	curMsgs   int
}

func newOutboundQueue(maxMsgs int) *outboundQueue {
	return &outboundQueue{maxBytes: defaultQueueBytes, maxMsgs: maxMsgs}
}

func (q *outboundQueue) admit(n int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.curBytes+n > q.maxBytes || q.curMsgs+1 > q.maxMsgs {
		return false
	}
	q.curBytes += n
	q.curMsgs++
	return true
}

func (q *outboundQueue) release(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.curBytes -= n
	q.curMsgs--
	if q.curBytes < 0 {
		q.curBytes = 0
	}
	if q.curMsgs < 0 {
		q.curMsgs = 0
	}
}

// DefaultQueueMessageCap derives the per-socket message cap from total
// system memory: generous on a large host, never below the spec's 256
// default on a small one. Mirrors the teacher's absence of any such
// sizing — a gap the Domain Stack note calls out as previously unwired.
func DefaultQueueMessageCap() int {
	total := memory.TotalMemory()
	const gib = 1 << 30
	switch {
	case total >= 32*gib:
		return 1024
	case total >= 8*gib:
		return 512
	default:
		return defaultQueueMessages
	}
}
