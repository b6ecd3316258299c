package room

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before the read
	// side gives up on it.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait so pings keep the
	// connection alive.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize caps inbound frames; game messages are tiny.
	maxMessageSize = 8192
	// sendBufferSize is the per-client outbound queue. A full queue means
	// the client cannot keep up and frames are dropped for it.
	sendBufferSize = 64
)

// Sender is the slice of a connection that rooms interact with: an
// identity plus a non-blocking way to push frames and to hang up.
type Sender interface {
	SessionID() string
	PlayerID() string
	Send(env Envelope)
	Close(code int, reason string)
}

// Client owns one websocket connection. Reads are pumped into the
// owning room; writes are serialized through a buffered channel so that
// a slow client never blocks the room goroutine.
type Client struct {
	sessionID string
	playerID  string
	roomID    string

	conn    *websocket.Conn
	limiter *rate.Limiter
	logger  *slog.Logger

	send chan Envelope
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

// NewClient wraps an upgraded connection. The limiter may be nil to
// disable inbound rate limiting.
func NewClient(conn *websocket.Conn, sessionID, playerID, roomID string, limiter *rate.Limiter) *Client {
	return &Client{
		sessionID: sessionID,
		playerID:  playerID,
		roomID:    roomID,
		conn:      conn,
		limiter:   limiter,
		logger: slog.With(
			"component", "room_client",
			"room_id", roomID,
			"player_id", playerID,
			"session_id", sessionID,
		),
		send: make(chan Envelope, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *Client) SessionID() string { return c.sessionID }
func (c *Client) PlayerID() string  { return c.playerID }

// Send queues a frame for delivery. It never blocks: when the buffer is
// full the frame is dropped for this client only.
func (c *Client) Send(env Envelope) {
	select {
	case <-c.done:
	case c.send <- env:
	default:
		c.logger.Warn("Dropping frame for slow client", "type", env.Type)
	}
}

// Close asks the write pump to deliver a close frame and tear the
// connection down. Safe to call from any goroutine, repeatedly.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// WritePump serializes all writes to the connection: queued frames,
// keepalive pings, and the final close frame. It owns the connection's
// write side and closes the socket when it returns.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			data, err := json.Marshal(env)
			if err != nil {
				c.logger.Error("Failed to encode frame", "type", env.Type, "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeReason))
			return
		}
	}
}

// ReadPump decodes inbound frames and hands them to the room. It returns
// when the connection dies or Close is called; the caller is responsible
// for reporting the disconnect to the room.
func (c *Client) ReadPump(handle func(Envelope)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Connection closed unexpectedly", "error", err)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn("Dropping message over rate limit")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("Discarding malformed frame", "error", err)
			continue
		}
		handle(env)
	}
}
