package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 20 * time.Second
	sendBufferSize = 256
)

// Client represents one live websocket connection with its authenticated
// identity. Identity is resolved once at connect time; no event
// re-authenticates.
type Client struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Role        string
	OfficeID    *uuid.UUID
	ConnectedAt time.Time

	conn    *websocket.Conn
	send    chan Event
	limiter *rate.Limiter
	gateway *Gateway

	closeMu sync.Mutex
	closed  bool
}

func newClient(conn *websocket.Conn, userID uuid.UUID, role string, officeID *uuid.UUID, gateway *Gateway) *Client {
	return &Client{
		ID:          uuid.New(),
		UserID:      userID,
		Role:        role,
		OfficeID:    officeID,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan Event, sendBufferSize),
		gateway:     gateway,
		limiter:     rate.NewLimiter(rate.Limit(20), 40), // 20 events/s, bursts of 40
	}
}

// Close shuts the send channel down. The write pump drains any queued
// events, sends a close frame and tears the socket down. Idempotent.
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Send queues an event for delivery. Returns false when the connection is
// closed or the buffer is full; the event is dropped rather than blocking
// the caller.
func (c *Client) Send(event Event) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// readPump reads inbound frames and hands them to the gateway. Events from
// one connection are processed in receipt order; the pump exits on the
// first read error and triggers connection teardown.
func (c *Client) readPump() {
	defer func() {
		c.gateway.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("user_id", c.UserID.String()).Msg("WebSocket read error")
			}
			break
		}
		c.gateway.dispatch(c, message)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with periodic pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Str("user_id", c.UserID.String()).Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
