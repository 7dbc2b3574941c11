// Package client implements the Go client for the realtime chat relay: the
// WebSocket event glue, the client-side typing state machine, and the REST
// history fetch a reconnecting client reconciles against.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/server"
)

// DefaultTypingWindow is the contractual inactivity window after the last
// keystroke before the client emits stop_typing on its own.
const DefaultTypingWindow = 2 * time.Second

// Handlers receives server events. Nil handlers are skipped.
type Handlers struct {
	OnMessageSent  func(chat.Message)
	OnNewMessage   func(chat.Message)
	OnStatusChange func(server.StatusChangePayload)
	OnTyping       func(server.TypingPayload)
	OnStopTyping   func(server.TypingPayload)
	OnMessagesRead func(server.ReadMessagesPayload)
	OnError        func(server.ErrorPayload)
	OnDisconnect   func(error)
}

// Options configures a Client.
type Options struct {
	// Token authenticates the connection when the server requires it.
	Token string
	// TypingWindow overrides DefaultTypingWindow, mainly for tests.
	TypingWindow time.Duration
	Handlers     Handlers
	Log          zerolog.Logger
	// HTTPClient is used for REST calls; http.DefaultClient when nil.
	HTTPClient *http.Client
}

// Client is one live connection acting as a single user. The server never
// replays missed messages over the socket, so after a reconnect the caller
// is expected to reconcile with History.
type Client struct {
	userID   string
	baseURL  *url.URL
	conn     *websocket.Conn
	http     *http.Client
	handlers Handlers
	log      zerolog.Logger

	writeMu sync.Mutex

	typingMu sync.Mutex
	typing   map[string]*typingMachine
	window   time.Duration

	done chan struct{}
}

// Dial connects to the relay at baseURL (http:// or https://), announces the
// user, and starts dispatching server events to the configured handlers.
func Dial(ctx context.Context, baseURL, userID string, opts Options) (*Client, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}

	wsURL := *parsed
	switch wsURL.Scheme {
	case "http", "ws":
		wsURL.Scheme = "ws"
	case "https", "wss":
		wsURL.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", wsURL.Scheme)
	}
	wsURL.Path = "/ws"
	if opts.Token != "" {
		q := wsURL.Query()
		q.Set("token", opts.Token)
		wsURL.RawQuery = q.Encode()
	}

	header := http.Header{}
	header.Set("Origin", parsed.Scheme+"://"+parsed.Host)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL.String(), err)
	}

	window := opts.TypingWindow
	if window <= 0 {
		window = DefaultTypingWindow
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		userID:   userID,
		baseURL:  parsed,
		conn:     conn,
		http:     httpClient,
		handlers: opts.Handlers,
		log:      opts.Log.With().Str("user", userID).Logger(),
		typing:   make(map[string]*typingMachine),
		window:   window,
		done:     make(chan struct{}),
	}

	if err := c.emit(server.EventUserConnected, server.UserConnectedPayload{UserID: userID}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

// UserID returns the identity this client connected as.
func (c *Client) UserID() string { return c.userID }

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close stops typing timers and closes the connection.
func (c *Client) Close() error {
	c.typingMu.Lock()
	for _, m := range c.typing {
		m.shutdown()
	}
	c.typingMu.Unlock()
	return c.conn.Close()
}

// SendMessage emits a send_message event. Any pending typing indicator for
// the chat is stopped first, mirroring what a UI does when the input is
// flushed.
func (c *Client) SendMessage(chatID, content string) error {
	c.StopTyping(chatID)
	return c.emit(server.EventSendMessage, server.SendMessagePayload{
		ChatID:   chatID,
		SenderID: c.userID,
		Content:  content,
	})
}

// MarkRead emits a batch read receipt for the chat.
func (c *Client) MarkRead(chatID string) error {
	return c.emit(server.EventReadMessages, server.ReadMessagesPayload{
		ChatID: chatID,
		UserID: c.userID,
	})
}

// Keystroke drives the typing state machine for the chat: the first
// keystroke emits typing, further ones re-arm the inactivity timer, and the
// timer's expiry emits stop_typing without server involvement.
func (c *Client) Keystroke(chatID string) {
	c.machineFor(chatID).Keystroke()
}

// StopTyping explicitly ends the typing indicator for the chat, if active.
func (c *Client) StopTyping(chatID string) {
	c.typingMu.Lock()
	m, ok := c.typing[chatID]
	c.typingMu.Unlock()
	if ok {
		m.Stop()
	}
}

func (c *Client) machineFor(chatID string) *typingMachine {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	m, ok := c.typing[chatID]
	if !ok {
		payload := server.TypingPayload{ChatID: chatID, UserID: c.userID}
		m = newTypingMachine(c.window,
			func() {
				if err := c.emit(server.EventTyping, payload); err != nil {
					c.log.Debug().Err(err).Msg("emitting typing")
				}
			},
			func() {
				if err := c.emit(server.EventStopTyping, payload); err != nil {
					c.log.Debug().Err(err).Msg("emitting stop_typing")
				}
			},
		)
		c.typing[chatID] = m
	}
	return m
}

// History fetches the chat's persisted messages in insertion order over REST.
func (c *Client) History(ctx context.Context, chatID string) ([]chat.Message, error) {
	var messages []chat.Message
	if err := c.getJSON(ctx, fmt.Sprintf("/api/chats/%s/messages", chatID), &messages); err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", chatID, err)
	}
	return messages, nil
}

// Chats lists the chats this user participates in, most recently active
// first. Together with History it forms the reconnect reconciliation path:
// list the chats, then fetch each history the client is behind on.
func (c *Client) Chats(ctx context.Context) ([]chat.Chat, error) {
	var chats []chat.Chat
	if err := c.getJSON(ctx, fmt.Sprintf("/api/users/%s/chats", c.userID), &chats); err != nil {
		return nil, fmt.Errorf("list chats for %s: %w", c.userID, err)
	}
	return chats, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	endpoint := *c.baseURL
	endpoint.Path = path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(server.Envelope{Event: event, Data: raw})
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handlers.OnDisconnect != nil {
				c.handlers.OnDisconnect(err)
			}
			return
		}
		// The server drains its send queue into one websocket message with
		// newline separators between frames.
		for _, frame := range bytes.Split(raw, []byte{'\n'}) {
			if len(frame) == 0 {
				continue
			}
			var env server.Envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				c.log.Debug().Err(err).Msg("dropping malformed server frame")
				continue
			}
			c.handle(env)
		}
	}
}

func (c *Client) handle(env server.Envelope) {
	switch env.Event {
	case server.EventMessageSent:
		dispatch(c, env.Data, c.handlers.OnMessageSent)
	case server.EventNewMessage:
		dispatch(c, env.Data, c.handlers.OnNewMessage)
	case server.EventUserStatusChange:
		dispatch(c, env.Data, c.handlers.OnStatusChange)
	case server.EventUserTyping:
		dispatch(c, env.Data, c.handlers.OnTyping)
	case server.EventUserStopTyping:
		dispatch(c, env.Data, c.handlers.OnStopTyping)
	case server.EventMessagesRead:
		dispatch(c, env.Data, c.handlers.OnMessagesRead)
	case server.EventMessageError:
		dispatch(c, env.Data, c.handlers.OnError)
	default:
		c.log.Debug().Str("event", env.Event).Msg("ignoring unknown server event")
	}
}

func dispatch[T any](c *Client, data json.RawMessage, handler func(T)) {
	if handler == nil {
		return
	}
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		c.log.Debug().Err(err).Msg("dropping undecodable payload")
		return
	}
	handler(payload)
}
