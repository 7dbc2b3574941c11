// Package server coordinates connection lifecycle, presence transitions, and
// event fan-out for the chat relay via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/autoreply"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/metrics"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/store"
)

// Options tunes hub and connection behavior. Zero values fall back to the
// defaults below.
type Options struct {
	StoreTimeout      time.Duration
	MaxMessageSize    int64
	RateLimitBurst    int
	RateLimitInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = 10
	}
	if o.RateLimitInterval <= 0 {
		o.RateLimitInterval = time.Second
	}
	return o
}

type bindRequest struct {
	client *Client
	userID string
}

// Hub owns the connection registry and runs the lifecycle loop that keeps
// presence state consistent. Domain events (send, typing, read receipts) are
// handled concurrently on each connection's read goroutine; connect,
// identity binding, and disconnect all pass through the single Run loop, so
// presence transitions for a user are serialized and each transition
// broadcasts exactly once.
type Hub struct {
	log      zerolog.Logger
	opts     Options
	store    store.Store
	registry *Registry

	relay    *Relay
	typing   *TypingCoordinator
	receipts *ReceiptPropagator

	clients    map[*Client]bool
	register   chan *Client
	bind       chan bindRequest
	unregister chan *Client
	broadcast  chan []byte

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub wired to the given store and reply generator.
func NewHub(log zerolog.Logger, st store.Store, gen autoreply.Generator, opts Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		log:        log,
		opts:       opts.withDefaults(),
		store:      st,
		registry:   NewRegistry(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		bind:       make(chan bindRequest),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.relay = NewRelay(h, gen)
	h.typing = NewTypingCoordinator(h)
	h.receipts = NewReceiptPropagator(h)
	return h
}

// Registry exposes the connection registry for read access.
func (h *Hub) Registry() *Registry { return h.registry }

// storeContext returns the bounded context used for every store call. It is
// never derived from a connection: closing a transport must not abort a
// persist that is already in flight.
func (h *Hub) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.opts.StoreTimeout)
}

// Run processes lifecycle events until Shutdown. It must be started in its
// own goroutine before any connection is registered.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn().Msg("nil client registration, skipping")
				continue
			}
			h.attachClient(client)

		case req := <-h.bind:
			h.bindClient(req.client, req.userID)

		case client := <-h.unregister:
			h.detachClient(client)

		case payload := <-h.broadcast:
			h.broadcastAll(payload)
		}
	}
}

func (h *Hub) attachClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	count := len(h.clients)
	h.mutex.Unlock()

	metrics.OpenConnections.Set(float64(count))
	client.log.Info().Int("total", count).Msg("connection attached")

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// bindClient files the connection under its user and, when it is the user's
// first live connection, persists the online flag and announces the
// transition to every connected client.
func (h *Hub) bindClient(client *Client, userID string) {
	if !client.bindUser(userID) {
		client.log.Warn().
			Str("bound", client.User()).
			Str("claimed", userID).
			Msg("rejecting rebind to a different user")
		return
	}

	first := h.registry.Register(userID, client)
	metrics.OnlineUsers.Set(float64(h.registry.OnlineCount()))
	client.log.Info().Str("user", userID).Bool("first", first).Msg("connection bound")

	if !first {
		return
	}

	now := time.Now().UTC()
	ctx, cancel := h.storeContext()
	defer cancel()
	if err := h.store.SetOnline(ctx, userID, true, now); err != nil {
		// Presence persistence is best-effort; the broadcast still goes out.
		h.log.Error().Err(err).Str("user", userID).Msg("persisting online flag")
	}
	h.announceStatus(StatusChangePayload{UserID: userID, IsOnline: true})
}

// detachClient removes the connection and, when it was the user's last live
// connection, persists last-seen and announces the offline transition.
// Detaching an unknown connection is swallowed silently so double
// disconnects are safe.
func (h *Hub) detachClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	count := len(h.clients)
	h.mutex.Unlock()
	close(client.send)

	metrics.OpenConnections.Set(float64(count))
	client.log.Info().Int("total", count).Msg("connection detached")

	h.deregisterClient(client)
}

// deregisterClient removes the connection from the registry and, when it was
// the user's last live connection, persists last-seen and announces the
// offline transition. Both detachClient and the slow-consumer eviction path
// end here, so an evicted connection cannot leave its user online forever.
func (h *Hub) deregisterClient(client *Client) {
	userID, last, found := h.registry.Deregister(client.id)
	metrics.OnlineUsers.Set(float64(h.registry.OnlineCount()))
	if !found || !last {
		return
	}

	now := time.Now().UTC()
	ctx, cancel := h.storeContext()
	defer cancel()
	if err := h.store.SetOnline(ctx, userID, false, now); err != nil {
		h.log.Error().Err(err).Str("user", userID).Msg("persisting offline flag")
	}
	h.announceStatus(StatusChangePayload{UserID: userID, IsOnline: false, LastSeen: &now})
}

// announceStatus broadcasts a presence transition to all connected clients.
// There is no contact-list scoping at this layer.
func (h *Hub) announceStatus(payload StatusChangePayload) {
	data, err := encodeEvent(EventUserStatusChange, payload)
	if err != nil {
		h.log.Error().Err(err).Msg("encoding status change")
		return
	}
	h.broadcastAll(data)
}

func (h *Hub) broadcastAll(payload []byte) {
	h.mutex.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mutex.RUnlock()

	var failed []*Client
	for _, client := range targets {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

// dispatch routes one inbound event to its component. It runs on the
// connection's read goroutine, so distinct connections are handled
// concurrently; lifecycle events are forwarded to the Run loop.
func (h *Hub) dispatch(client *Client, env Envelope) {
	switch env.Event {
	case EventUserConnected:
		h.handleUserConnected(client, env)

	case EventSendMessage:
		if err := h.relay.Send(client, env.Data); err != nil {
			client.log.Warn().Err(err).Msg("send_message failed")
		}

	case EventTyping, EventStopTyping:
		if err := h.typing.Relay(client, env.Event, env.Data); err != nil {
			client.log.Debug().Err(err).Msg("typing relay failed")
		}

	case EventReadMessages:
		if err := h.receipts.Propagate(client, env.Data); err != nil {
			client.log.Warn().Err(err).Msg("read_messages failed")
		}

	default:
		client.log.Debug().Str("event", env.Event).Msg("ignoring unknown event")
	}
}

func (h *Hub) handleUserConnected(client *Client, env Envelope) {
	var payload UserConnectedPayload
	if err := unmarshalPayload(env.Data, &payload); err != nil {
		h.emitError(client, EventUserConnected, "userId is required")
		return
	}
	if client.claimedUser != "" && client.claimedUser != payload.UserID {
		client.log.Warn().
			Str("claimed", payload.UserID).
			Str("token", client.claimedUser).
			Msg("user_connected identity does not match token")
		h.emitError(client, EventUserConnected, "identity does not match token")
		return
	}

	select {
	case h.bind <- bindRequest{client: client, userID: payload.UserID}:
	case <-h.ctx.Done():
	}
}

// emit frames an event and queues it on the client's send channel. Failures
// are counted but never abort the caller's fan-out loop.
func (h *Hub) emit(client *Client, event string, data any) bool {
	payload, err := encodeEvent(event, data)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encoding event")
		return false
	}
	if !h.safeSend(client, payload) {
		metrics.EventsDropped.WithLabelValues(event).Inc()
		client.log.Debug().Str("event", event).Msg("dropping event for unreachable connection")
		return false
	}
	metrics.EventsRelayed.WithLabelValues(event).Inc()
	return true
}

// emitToUser fans an event out to every live connection of a user.
func (h *Hub) emitToUser(userID, event string, data any) {
	for _, conn := range h.registry.ConnectionsFor(userID) {
		h.emit(conn, event, data)
	}
}

func (h *Hub) emitError(client *Client, event, reason string) {
	h.emit(client, EventMessageError, ErrorPayload{Event: event, Reason: reason})
}

func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn().Interface("panic", r).Msg("recovered from send on closed channel")
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var evicted []*Client
	for _, client := range failed {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			evicted = append(evicted, client)
			client.log.Warn().Msg("removing connection with full send buffer")
		}
	}
	count := len(h.clients)
	h.mutex.Unlock()

	metrics.OpenConnections.Set(float64(count))
	for _, client := range evicted {
		close(client.send)
		h.deregisterClient(client)
	}
}

func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Debug().Err(err).Msg("closing connection during shutdown")
			}
		}
	}
	h.log.Info().Int("connections", len(clients)).Msg("closed all client connections")
}

// Shutdown stops the Run loop, closes every connection, and waits for pump
// goroutines to finish or the timeout to expire.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("hub shutting down")
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info().Msg("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timeout, goroutines may still be running")
		return context.DeadlineExceeded
	}
}
