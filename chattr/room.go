package chattr

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Room binds one conversation to the session's event channel. Exactly
// one room is active per client; entering another conversation leaves
// the current one first, so inbound events are never misattributed.
type Room struct {
	client  *Client
	chatID  string
	members []string

	typing    *TypingCoordinator
	stream    *Stream
	paginator *Paginator

	mu          sync.Mutex
	left        bool
	subs        []Subscription
	provisional []string // FIFO of unconfirmed local message ids
	onUpdate    func()
}

// JoinRoom enters a conversation: it announces the join with the
// caller's identity and member list, then scopes the four conversation
// events to this chat id. Joining the already-active conversation is a
// no-op returning the same room. Joining a different conversation
// leaves the previous one first.
func (c *Client) JoinRoom(ctx context.Context, chatID string, members []string) (*Room, error) {
	c.mu.Lock()
	current := c.room
	c.mu.Unlock()

	if current != nil {
		if current.chatID == chatID {
			return current, nil // duplicate join
		}
		if err := current.Leave(ctx); err != nil {
			return nil, err
		}
	}

	r := &Room{
		client:  c,
		chatID:  chatID,
		members: members,
		stream:  newStream(c.clock),
	}
	r.typing = newTypingCoordinator(c.clock, c.cfg.TypingTimeout,
		func() { r.emitTyping(eventStartTyping) },
		func() { r.emitTyping(eventStopTyping) },
	)
	if c.REST != nil {
		r.paginator = NewPaginator(restFetcher{rc: c.REST}, chatID)
	}
	r.register()

	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
	c.alerts.ClearChat(chatID)

	if err := c.send(ctx, r.joinEnvelope()); err != nil {
		return nil, err
	}
	return r, nil
}

// ChatID returns the conversation id the room is bound to.
func (r *Room) ChatID() string { return r.chatID }

// Members returns the conversation's member ids as supplied on join.
// The room only reads this back-reference; it is owned by the chat
// metadata the caller fetched.
func (r *Room) Members() []string { return r.members }

// Typing returns the room's typing coordinator.
func (r *Room) Typing() *TypingCoordinator { return r.typing }

// OnUpdate registers the callback fired after every change to the
// merged message stream.
func (r *Room) OnUpdate(fn func()) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

// Leave exits the conversation: announces the leave, removes every
// scoped listener, and discards typing, stream, and pagination state.
// Idempotent.
func (r *Room) Leave(ctx context.Context) error {
	r.mu.Lock()
	if r.left {
		r.mu.Unlock()
		return nil
	}
	r.left = true
	subs := r.subs
	r.subs = nil
	r.provisional = nil
	r.mu.Unlock()

	err := r.client.send(ctx, Inbound{
		Event: eventChatLeave,
		Data:  RoomPayload{UserID: r.client.cfg.User.ID, Members: r.members},
	})
	for _, s := range subs {
		r.client.dispatcher.Unsubscribe(s)
	}
	r.typing.Reset()
	r.stream.Reset()

	r.client.mu.Lock()
	if r.client.room == r {
		r.client.room = nil
	}
	r.client.mu.Unlock()
	return err
}

// Send publishes a message body. A provisional copy with a client
// generated id appears in the stream immediately and is replaced by the
// server's persisted message when the echo arrives. Sending also clears
// the local typing state.
func (r *Room) Send(ctx context.Context, body string) error {
	r.mu.Lock()
	if r.left {
		r.mu.Unlock()
		return NewError(ErrorNotConnected, "room left")
	}
	r.mu.Unlock()

	provisional := Message{
		ID:        "local-" + uuid.NewString(),
		Sender:    r.client.cfg.User,
		Content:   body,
		ChatID:    r.chatID,
		CreatedAt: r.client.clock.Now().UTC(),
	}
	r.stream.PushLive(provisional)
	r.mu.Lock()
	r.provisional = append(r.provisional, provisional.ID)
	r.mu.Unlock()
	r.fireUpdate()

	err := r.client.send(ctx, Inbound{
		Event: eventNewMessage,
		Data:  SendPayload{ChatID: r.chatID, Members: r.members, Message: body},
	})
	r.typing.MessageSent()
	return err
}

// Keystroke records local composing activity, driving the outbound
// typing signals.
func (r *Room) Keystroke() { r.typing.Keystroke() }

// HasMore reports whether older history pages may exist.
func (r *Room) HasMore() bool {
	return r.paginator != nil && r.paginator.HasMore()
}

// LoadOlder fetches the next history page and merges it. A page that
// resolves after the room was left is discarded, not merged. Fetch
// failures propagate to the caller and leave pagination retryable.
func (r *Room) LoadOlder(ctx context.Context) error {
	if r.paginator == nil {
		return NewError(ErrorInvalidConfig, "no REST base URL configured")
	}
	page, err := r.paginator.NextPage(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	left := r.left
	r.mu.Unlock()
	if left || len(page) == 0 {
		return nil
	}
	r.stream.AddHistory(page)
	r.fireUpdate()
	return nil
}

// Sections returns the merged, date-grouped conversation for rendering.
func (r *Room) Sections() []Section { return r.stream.Sections() }

// MessageCount returns the number of distinct messages merged so far.
func (r *Room) MessageCount() int { return r.stream.Len() }

func (r *Room) joinEnvelope() Inbound {
	return Inbound{
		Event: eventChatJoined,
		Data:  RoomPayload{UserID: r.client.cfg.User.ID, Members: r.members},
	}
}

// register installs the four conversation-scoped listeners. Every
// handler drops events tagged with another conversation id before any
// downstream component sees them.
func (r *Room) register() {
	d := &r.client.dispatcher
	r.subs = []Subscription{
		d.Subscribe(eventNewMessage, func(data json.RawMessage) {
			var ev MessageEvent
			if err := UnmarshalData(data, &ev); err != nil {
				d.fireError(WrapError(ErrorSerialization, "decode new message", err))
				return
			}
			if !r.inScope(ev.ChatID) {
				return
			}
			r.acceptMessage(ev.Message)
		}),
		d.Subscribe(eventAlert, func(data json.RawMessage) {
			var ev AlertEvent
			if err := UnmarshalData(data, &ev); err != nil {
				d.fireError(WrapError(ErrorSerialization, "decode alert", err))
				return
			}
			if !r.inScope(ev.ChatID) {
				return
			}
			r.stream.PushAlert(r.chatID, ev.Message)
			r.fireUpdate()
		}),
		d.Subscribe(eventStartTyping, func(data json.RawMessage) {
			var ev TypingEvent
			if err := UnmarshalData(data, &ev); err != nil {
				d.fireError(WrapError(ErrorSerialization, "decode typing start", err))
				return
			}
			if !r.inScope(ev.ChatID) || ev.User.ID == r.client.cfg.User.ID {
				return
			}
			r.typing.RemoteStart(ev.User)
		}),
		d.Subscribe(eventStopTyping, func(data json.RawMessage) {
			var ev TypingEvent
			if err := UnmarshalData(data, &ev); err != nil {
				d.fireError(WrapError(ErrorSerialization, "decode typing stop", err))
				return
			}
			if !r.inScope(ev.ChatID) {
				return
			}
			r.typing.RemoteStop()
		}),
	}
}

// acceptMessage merges one live-pushed message, reconciling the oldest
// outstanding provisional when the message is the local user's echo.
func (r *Room) acceptMessage(m Message) {
	r.mu.Lock()
	var tempID string
	if m.Sender.ID == r.client.cfg.User.ID && len(r.provisional) > 0 {
		tempID = r.provisional[0]
		r.provisional = r.provisional[1:]
	}
	r.mu.Unlock()

	if tempID != "" {
		r.stream.Confirm(tempID, m)
	} else {
		r.stream.PushLive(m)
	}
	r.fireUpdate()
}

func (r *Room) inScope(chatID string) bool {
	r.mu.Lock()
	left := r.left
	r.mu.Unlock()
	if left {
		return false
	}
	if chatID != r.chatID {
		r.client.logger.Debug("scope mismatch, event dropped", map[string]any{
			"want": r.chatID,
			"got":  chatID,
		})
		return false
	}
	return true
}

func (r *Room) fireUpdate() {
	r.mu.Lock()
	fn := r.onUpdate
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *Room) emitTyping(event string) {
	payload := TypingPayload{ChatID: r.chatID, Members: r.members}
	if event == eventStartTyping {
		u := r.client.cfg.User
		payload.User = &u
	}
	_ = r.client.send(context.Background(), Inbound{Event: event, Data: payload})
}

// setFetcher overrides the history source. Tests only.
func (r *Room) setFetcher(f Fetcher) {
	r.paginator = NewPaginator(f, r.chatID)
}
