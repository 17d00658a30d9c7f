package chattr

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.User = User{ID: "u1", Name: "alice"}
	return NewClient(cfg)
}

// deliver feeds one inbound event straight into the dispatcher, the way
// the read loop would.
func deliver(t *testing.T, c *Client, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	c.dispatcher.Dispatch(Outbound{Event: event, Data: raw})
}

func TestRoomScopingDropsForeignEvents(t *testing.T) {
	c := testClient(t)
	r, err := c.JoinRoom(context.Background(), "A", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "B", Message: msgAt("m1", ts)})
	deliver(t, c, eventAlert, AlertEvent{ChatID: "B", Message: "u9 joined"})
	deliver(t, c, eventStartTyping, TypingEvent{ChatID: "B", User: User{ID: "u2"}})

	if r.MessageCount() != 0 {
		t.Fatalf("foreign message leaked into the stream")
	}
	if r.Typing().Indicator().Active {
		t.Fatalf("foreign typing leaked into the indicator")
	}

	// The same events for A do land.
	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "A", Message: msgAt("m1", ts)})
	deliver(t, c, eventStartTyping, TypingEvent{ChatID: "A", User: User{ID: "u2"}})
	if r.MessageCount() != 1 || !r.Typing().Indicator().Active {
		t.Fatalf("in-scope events dropped")
	}
}

func TestRoomServerRetryDeliversOnce(t *testing.T) {
	c := testClient(t)
	r, err := c.JoinRoom(context.Background(), "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m1 := msgAt("m1", ts)
	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "C1", Message: m1})
	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "C1", Message: m1}) // server retry

	if r.MessageCount() != 1 {
		t.Fatalf("merged length = %d, want 1", r.MessageCount())
	}
	flat := flatten(r.Sections())
	if len(flat) != 1 || flat[0].ID != "m1" {
		t.Fatalf("merged stream = %+v, want m1 once", flat)
	}
}

func TestRoomDuplicateJoinIsNoOp(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	r1, err := c.JoinRoom(ctx, "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := c.JoinRoom(ctx, "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Fatalf("duplicate join produced a new room")
	}

	updates := 0
	r1.OnUpdate(func() { updates++ })
	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "C1", Message: msgAt("m1", time.Now())})
	if updates != 1 {
		t.Fatalf("message delivered %d times, want 1", updates)
	}
}

func TestRoomSwitchLeavesPrevious(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	r1, err := c.JoinRoom(ctx, "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := c.JoinRoom(ctx, "C2", []string{"u1", "u3"})
	if err != nil {
		t.Fatal(err)
	}

	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "C1", Message: msgAt("m1", time.Now())})
	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "C2", Message: msgAt("m2", time.Now())})

	if r1.MessageCount() != 0 {
		t.Fatalf("left room still receiving events")
	}
	if r2.MessageCount() != 1 {
		t.Fatalf("active room missed its event")
	}

	// Envelope order: join C1, leave C1, join C2.
	c.mu.Lock()
	events := make([]string, len(c.pending))
	for i, in := range c.pending {
		events[i] = in.Event
	}
	c.mu.Unlock()
	want := []string{eventChatJoined, eventChatLeave, eventChatJoined}
	if len(events) != len(want) {
		t.Fatalf("queued events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("queued events = %v, want %v", events, want)
		}
	}
}

func TestRoomAlertBecomesSystemMessage(t *testing.T) {
	c := testClient(t)
	r, err := c.JoinRoom(context.Background(), "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}

	deliver(t, c, eventAlert, AlertEvent{ChatID: "C1", Message: "u2 left the group"})

	flat := flatten(r.Sections())
	if len(flat) != 1 {
		t.Fatalf("stream = %+v, want one alert", flat)
	}
	if flat[0].Sender.ID != systemSender.ID || flat[0].Content != "u2 left the group" {
		t.Fatalf("alert message = %+v", flat[0])
	}
}

func TestRoomProvisionalConfirmedByEcho(t *testing.T) {
	c := testClient(t)
	r, err := c.JoinRoom(context.Background(), "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Send(context.Background(), "hello there"); err != nil {
		t.Fatal(err)
	}
	if r.MessageCount() != 1 {
		t.Fatalf("no provisional message after send")
	}

	echo := Message{
		ID:        "srv-1",
		Sender:    User{ID: "u1", Name: "alice"},
		Content:   "hello there",
		ChatID:    "C1",
		CreatedAt: time.Now().UTC(),
	}
	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "C1", Message: echo})

	flat := flatten(r.Sections())
	if len(flat) != 1 {
		t.Fatalf("stream = %d messages after confirm, want 1", len(flat))
	}
	if flat[0].ID != "srv-1" {
		t.Fatalf("provisional not replaced: %+v", flat[0])
	}
}

func TestRoomTypingScopedAndOwnEchoIgnored(t *testing.T) {
	c := testClient(t)
	r, err := c.JoinRoom(context.Background(), "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}

	// The server may mirror our own start back at us.
	deliver(t, c, eventStartTyping, TypingEvent{ChatID: "C1", User: User{ID: "u1"}})
	if r.Typing().Indicator().Active {
		t.Fatalf("own typing echo displayed")
	}

	deliver(t, c, eventStartTyping, TypingEvent{ChatID: "C1", User: User{ID: "u2", Name: "bob"}})
	if ind := r.Typing().Indicator(); !ind.Active || ind.User.ID != "u2" {
		t.Fatalf("indicator = %+v", ind)
	}
	deliver(t, c, eventStopTyping, TypingEvent{ChatID: "C1"})
	if r.Typing().Indicator().Active {
		t.Fatalf("indicator not cleared by stop")
	}
}

func TestRoomLoadOlderMergesHistory(t *testing.T) {
	c := testClient(t)
	r, err := c.JoinRoom(context.Background(), "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	r.setFetcher(&fakeFetcher{pages: map[int]HistoryPage{
		1: historyPage(3, 1),
		2: {},
	}})

	if err := r.LoadOlder(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.MessageCount() != 3 {
		t.Fatalf("merged = %d, want 3", r.MessageCount())
	}
	if err := r.LoadOlder(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.HasMore() {
		t.Fatalf("HasMore after terminal page")
	}
}

func TestRoomLoadOlderDiscardedAfterLeave(t *testing.T) {
	c := testClient(t)
	r, err := c.JoinRoom(context.Background(), "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeFetcher{
		pages:   map[int]HistoryPage{1: historyPage(5, 1)},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	r.setFetcher(f)

	done := make(chan error, 1)
	go func() { done <- r.LoadOlder(context.Background()) }()
	<-f.started

	if err := r.Leave(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(f.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	// The page resolved after the leave and was discarded.
	if n := r.MessageCount(); n != 0 {
		t.Fatalf("stale page merged: %d messages", n)
	}
}

func TestRoomLeaveClearsStateAndListeners(t *testing.T) {
	c := testClient(t)
	r, err := c.JoinRoom(context.Background(), "C1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "C1", Message: msgAt("m1", time.Now())})

	if err := r.Leave(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Leave(context.Background()); err != nil {
		t.Fatalf("second leave: %v", err)
	}

	deliver(t, c, eventNewMessage, MessageEvent{ChatID: "C1", Message: msgAt("m2", time.Now())})
	if r.MessageCount() != 0 {
		t.Fatalf("room state survived leave")
	}
	if c.room != nil {
		t.Fatalf("client still holds the left room")
	}
}

func TestRoomJoinClearsUnreadCounter(t *testing.T) {
	c := testClient(t)
	c.alerts.Seed(AlertSeed{MessageAlerts: []MessageAlert{{ChatID: "C1", Count: 4}}})

	if _, err := c.JoinRoom(context.Background(), "C1", []string{"u1", "u2"}); err != nil {
		t.Fatal(err)
	}
	if n := c.Alerts().CountFor("C1"); n != 0 {
		t.Fatalf("unread count = %d after entering chat, want 0", n)
	}
}
