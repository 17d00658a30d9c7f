package chattr

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/chattr-app/chattr-sdk/chattr-sdk-go/chattr/internal"
	"github.com/chattr-app/chattr-sdk/chattr-sdk-go/chattr/rest"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
)

// Client owns the one event channel of a session. It connects once,
// redials forever on loss, and hands inbound events to the dispatcher.
// Conversation changes never touch the channel, only subscriptions.
type Client struct {
	cfg        Config
	logger     Logger
	clock      clock.Clock
	writeCh    chan Inbound
	dispatcher Dispatcher

	// REST is the HTTP API client, nil unless Config.RESTBaseURL is set.
	REST *rest.Client

	presence *Presence
	alerts   *AlertTracker

	mu             sync.Mutex
	state          ConnectionState
	conn           *internal.Conn
	pending        []Inbound // queued while the channel is down
	cancel         context.CancelFunc
	room           *Room
	onState        func(StateEvent)
	onChatsChanged func()
}

// NewClient constructs a client with provided config.
// Use DefaultConfig() as a starting point and modify as needed.
func NewClient(cfg Config) *Client {
	c := &Client{
		cfg:      cfg,
		logger:   noopLogger{},
		clock:    clock.New(),
		writeCh:  make(chan Inbound, 16),
		presence: newPresence(),
		alerts:   newAlertTracker(),
	}
	if cfg.RESTBaseURL != "" {
		c.REST = rest.NewClient(cfg.RESTBaseURL)
		c.REST.SetToken(cfg.Token)
	}
	c.registerSessionListeners()
	return c
}

// SetLogger overrides logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

// setClock swaps the time source. Tests only; call before Connect.
func (c *Client) setClock(clk clock.Clock) { c.clock = clk }

// Presence returns the session's online-user tracker.
func (c *Client) Presence() *Presence { return c.presence }

// Alerts returns the session's unread counters.
func (c *Client) Alerts() *AlertTracker { return c.alerts }

// OnError registers callback for protocol and transport errors.
func (c *Client) OnError(fn func(error)) { c.dispatcher.SetOnError(fn) }

// OnStateChanged registers callback for connection state transitions.
func (c *Client) OnStateChanged(fn func(StateEvent)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// OnChatsChanged registers callback for the server's chat-list refresh
// hint. The SDK holds no chat-list state of its own; the callback is
// expected to refetch through REST.
func (c *Client) OnChatsChanged(fn func()) {
	c.mu.Lock()
	c.onChatsChanged = fn
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect validates the config and starts the session. The first dial
// happens synchronously; with AutoReconnect on, a dial failure is not
// fatal and the client keeps retrying in the background while outbound
// operations queue.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return NewError(ErrorInvalidConfig, "already connected")
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if c.cfg.URL == "" {
		c.setState(StateDisconnected, nil)
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	if _, err := url.Parse(c.cfg.URL); err != nil {
		c.setState(StateDisconnected, nil)
		return WrapError(ErrorInvalidConfig, "invalid URL", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		if !c.cfg.AutoReconnect {
			cancel()
			c.setState(StateError, err)
			return WrapError(ErrorConnection, "dial", err)
		}
		c.logger.Warn("initial dial failed, retrying", map[string]any{"error": err.Error()})
		c.setState(StateReconnecting, err)
		go c.run(runCtx, nil)
		return nil
	}

	c.setState(StateConnected, nil)
	go c.run(runCtx, conn)
	return nil
}

// Close shuts down the client and closes the WebSocket. Terminal: a
// closed client cannot reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	old := c.state
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	fn := c.onState
	c.mu.Unlock()
	if fn != nil && old != StateClosed {
		fn(StateEvent{OldState: old, NewState: StateClosed})
	}
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

// send enqueues one envelope. While the channel is down the envelope is
// queued and flushed in order once the channel recovers; the call never
// blocks on the network.
func (c *Client) send(ctx context.Context, in Inbound) error {
	c.mu.Lock()
	state := c.state
	if state != StateConnected && state != StateClosed {
		c.pending = append(c.pending, in)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if state == StateClosed {
		return NewError(ErrorNotConnected, "client is closed")
	}

	select {
	case c.writeCh <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run owns the channel for the client's lifetime: it serves the current
// connection until it breaks, then redials with a fixed delay between
// attempts, forever. conn is nil when the initial dial failed.
func (c *Client) run(ctx context.Context, conn *internal.Conn) {
	rejoin := false
	for {
		if conn == nil {
			var err error
			conn, err = c.redial(ctx)
			if err != nil {
				return
			}
			c.setState(StateConnected, nil)
		}

		err := c.serve(ctx, conn, rejoin)
		conn = nil
		rejoin = true
		if isExpectedDisconnect(ctx, err) {
			return
		}
		c.dispatcher.fireError(WrapError(ErrorDisconnected, "channel lost", err))
		if !c.cfg.AutoReconnect {
			c.setState(StateError, err)
			return
		}
		c.setState(StateReconnecting, err)
	}
}

// serve runs the read and write loops over one connection and returns
// the error that ended it. With rejoin set it first re-announces the
// active conversation, whose join signal died with the old connection.
func (c *Client) serve(ctx context.Context, conn *internal.Conn, rejoin bool) error {
	c.mu.Lock()
	c.conn = conn
	room := c.room
	queued := c.pending
	c.pending = nil
	c.mu.Unlock()

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()
	go c.writeLoop(connCtx, conn, connCancel)

	if rejoin && room != nil {
		queued = append([]Inbound{room.joinEnvelope()}, queued...)
	}
	for i, in := range queued {
		select {
		case c.writeCh <- in:
		case <-connCtx.Done():
			// Connection died mid-flush; keep the rest for the next one.
			c.mu.Lock()
			c.pending = append(c.pending, queued[i:]...)
			c.mu.Unlock()
			return connCtx.Err()
		}
	}

	for {
		var out Outbound
		if err := conn.Read(connCtx, &out); err != nil {
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			return err
		}
		c.dispatcher.Dispatch(out)
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *internal.Conn, cancel context.CancelFunc) {
	for {
		select {
		case in := <-c.writeCh:
			if err := conn.Write(ctx, in); err != nil {
				// Requeue so the envelope survives the reconnect.
				c.mu.Lock()
				c.pending = append([]Inbound{in}, c.pending...)
				c.mu.Unlock()
				c.logger.Warn("write failed", map[string]any{"event": in.Event, "error": err.Error()})
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// redial retries the dial with the configured fixed delay until it
// succeeds or the context ends. Attempt count is unbounded.
func (c *Client) redial(ctx context.Context) (*internal.Conn, error) {
	for attempt := 1; ; attempt++ {
		t := c.clock.Timer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("reconnect attempt failed", map[string]any{"attempt": attempt, "error": err.Error()})
	}
}

// dial opens the WebSocket and performs the hello handshake.
func (c *Client) dial(ctx context.Context) (*internal.Conn, error) {
	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	conn := internal.NewConn(ws, 0, c.cfg.WriteTimeout)

	hello := Inbound{
		Event: eventHello,
		Data: HelloPayload{
			Protocol: ProtocolVersion,
			Token:    c.cfg.Token,
			UserID:   c.cfg.User.ID,
		},
	}
	if err := conn.Write(dialCtx, hello); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake error")
		return nil, err
	}
	return conn, nil
}

func (c *Client) setState(s ConnectionState, cause error) {
	c.mu.Lock()
	old := c.state
	if old == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	if fn != nil && old != s {
		fn(StateEvent{OldState: old, NewState: s, Error: cause})
	}
}

// registerSessionListeners wires the session-wide inbound events that
// exist independently of any joined conversation.
func (c *Client) registerSessionListeners() {
	c.dispatcher.Subscribe(eventOnlineUsers, func(data json.RawMessage) {
		var ids []string
		if err := UnmarshalData(data, &ids); err != nil {
			c.dispatcher.fireError(WrapError(ErrorSerialization, "decode online users", err))
			return
		}
		c.presence.replace(ids)
	})
	c.dispatcher.Subscribe(eventNewMessageAlert, func(data json.RawMessage) {
		var ev MessageAlertEvent
		if err := UnmarshalData(data, &ev); err != nil {
			c.dispatcher.fireError(WrapError(ErrorSerialization, "decode message alert", err))
			return
		}
		c.alerts.bumpMessages(ev.ChatID)
	})
	c.dispatcher.Subscribe(eventNewRequest, func(json.RawMessage) {
		c.alerts.bumpNotifications()
	})
	c.dispatcher.Subscribe(eventRefetchChats, func(json.RawMessage) {
		c.mu.Lock()
		fn := c.onChatsChanged
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// isExpectedDisconnect reports whether the read error came from our own
// shutdown, judged by the session context rather than the error value:
// a write failure cancels only the connection's context, and that loss
// must still feed the reconnect loop. Server EOF and going-away closes
// are losses too.
func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure
}
