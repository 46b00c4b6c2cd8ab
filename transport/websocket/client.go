package websocket

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/volley-relay/relay/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound frames buffered per client before sends are dropped.
	sendBuffer = 256
)

var (
	errClientClosed   = errors.New("client connection closed")
	errSendBufferFull = errors.New("client send buffer full")
)

// Client is one live WebSocket connection.
// Everything except closed is owned by the hub goroutine.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	id          string
	remoteAddr  string
	connectedAt time.Time

	matchID string
	role    protocol.Role
	team    protocol.Team

	closed atomic.Bool
}

// ConnectionInfo describes a client for diagnostics
type ConnectionInfo struct {
	ID          string        `json:"id"`
	RemoteAddr  string        `json:"remoteAddr"`
	MatchID     string        `json:"matchId,omitempty"`
	Role        protocol.Role `json:"role"`
	Team        protocol.Team `json:"team,omitempty"`
	ConnectedAt time.Time     `json:"connectedAt"`
}

func newClient(h *Hub, conn *websocket.Conn, id, remoteAddr string) *Client {
	return &Client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		role:        protocol.RoleUnknown,
	}
}

// ID returns the connection identifier
func (c *Client) ID() string {
	return c.id
}

// Info returns a copy of the client's attributes
func (c *Client) Info() ConnectionInfo {
	return ConnectionInfo{
		ID:          c.id,
		RemoteAddr:  c.remoteAddr,
		MatchID:     c.matchID,
		Role:        c.role,
		Team:        c.team,
		ConnectedAt: c.connectedAt,
	}
}

// Send queues data without blocking
func (c *Client) Send(data []byte) error {
	if c.closed.Load() {
		return errClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Client) isClosed() bool {
	return c.closed.Load()
}

func (c *Client) markClosed() {
	c.closed.Store(true)
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.markClosed()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "clientId", c.id, "error", err)
			}
			return
		}

		select {
		case c.hub.inbound <- inbound{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.markClosed()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("websocket write failed", "clientId", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientAddr returns the caller's address without port or the IPv6-mapped
// IPv4 prefix
func clientAddr(r *http.Request, trustForwardedFor bool) string {
	addr := r.RemoteAddr
	if trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			addr = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return strings.TrimPrefix(addr, "::ffff:")
}
