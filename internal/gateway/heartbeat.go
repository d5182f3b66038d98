package gateway

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval = 15 * time.Second
	defaultPongTimeout  = 2 * defaultPingInterval // 2x pong interval, per spec default 30s
)

// heartbeatLoop sends a ping every pingInterval and closes the connection
// once pongTimeout has elapsed without a pong, per the gateway's stale-
// connection reaper contract.
func (g *Gateway) heartbeatLoop(c *Conn, pingInterval, pongTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeNotify():
			return
		case now := <-ticker.C:
			if c.pongDeadlinePassed(pongTimeout, now) {
				g.closeConn(c, "heartbeat_timeout")
				return
			}
			_ = c.ws.WriteControl(websocket.PingMessage, nil, now.Add(5*time.Second))
		}
	}
}
