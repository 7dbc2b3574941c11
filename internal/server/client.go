// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeWait     = 10 * time.Second
	sendQueueSize = 256
)

// Client represents one live WebSocket connection. The owning user identity
// is bound once, when the connection's user_connected event is accepted, and
// is immutable afterwards.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	addr string
	log  zerolog.Logger

	// claimedUser is the identity asserted by the connection's auth token,
	// empty when authentication is disabled.
	claimedUser string

	mu     sync.RWMutex
	userID string

	closed  bool // guarded by hub.mutex, like the clients map itself
	limiter *tokenBucket
}

// NewClient creates a Client for the given WebSocket connection. claimedUser
// carries the token-asserted identity when authentication is enabled.
func NewClient(conn *websocket.Conn, hub *Hub, addr, claimedUser string) *Client {
	if conn != nil {
		conn.SetReadLimit(hub.opts.MaxMessageSize)
	}
	id := uuid.NewString()
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		hub:         hub,
		addr:        addr,
		log:         hub.log.With().Str("conn", id).Str("addr", addr).Logger(),
		claimedUser: claimedUser,
		limiter:     newTokenBucket(hub.opts.RateLimitBurst, hub.opts.RateLimitInterval),
	}
}

// ID returns the connection identity.
func (c *Client) ID() string { return c.id }

// User returns the bound user identity, empty before user_connected.
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// bindUser sets the owning user once. It reports false when the connection is
// already bound to a different user.
func (c *Client) bindUser(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" {
		return c.userID == userID
	}
	c.userID = userID
	return true
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError classifies a read failure and reports whether the read loop
// should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn().Int64("limit", c.hub.opts.MaxMessageSize).Msg("inbound frame exceeded size limit")
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug().Err(err).Msg("client disconnected")
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("connection closed")
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn().Err(err).Msg("unexpected websocket error")
		return true
	}

	c.log.Warn().Err(err).Msg("websocket read error")
	return true
}

// processFrame parses one inbound frame and dispatches it to the hub. Frames
// that are not valid envelopes are dropped without closing the connection.
func (c *Client) processFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug().Err(err).Msg("dropping malformed frame")
		return
	}
	if env.Event == "" {
		c.log.Debug().Msg("dropping frame without event name")
		return
	}
	c.hub.dispatch(c, env)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug().Err(err).Msg("closing connection in read pump")
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
			continue
		}

		if !c.limiter.allow() {
			c.log.Warn().
				Int("burst", c.hub.opts.RateLimitBurst).
				Dur("interval", c.hub.opts.RateLimitInterval).
				Msg("rate limit exceeded, discarding frame")
			continue
		}

		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug().Err(err).Msg("closing connection in write pump")
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !c.writeFrame(payload, ok) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeFrame writes one outbound frame, draining any queued frames into the
// same writer. It returns false when the pump should stop.
func (c *Client) writeFrame(payload []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug().Err(err).Msg("setting write deadline")
		return false
	}

	if !ok {
		// Hub closed the send channel.
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			c.log.Debug().Err(err).Msg("writing close message")
		}
		return false
	}

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.log.Debug().Err(err).Msg("creating frame writer")
		return false
	}
	if _, err := w.Write(payload); err != nil {
		c.log.Debug().Err(err).Msg("writing frame")
		return false
	}

	queued := len(c.send)
	for i := 0; i < queued; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			c.log.Debug().Err(err).Msg("writing frame separator")
			return false
		}
		if _, err := w.Write(<-c.send); err != nil {
			c.log.Debug().Err(err).Msg("writing queued frame")
			return false
		}
	}

	if err := w.Close(); err != nil {
		c.log.Debug().Err(err).Msg("closing frame writer")
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug().Err(err).Msg("setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug().Err(err).Msg("writing ping")
		return false
	}
	return true
}

// isExpectedCloseError reports whether an error is routine connection
// teardown noise.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
