package chattr

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDispatcherRoutesByEvent(t *testing.T) {
	var got MessageEvent
	var errCalled bool
	var d Dispatcher
	d.Subscribe(eventNewMessage, func(data json.RawMessage) {
		if err := UnmarshalData(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	})
	d.SetOnError(func(err error) { errCalled = true })

	raw, _ := json.Marshal(MessageEvent{ChatID: "c1", Message: Message{ID: "m1", Content: "hi"}})
	d.Dispatch(Outbound{Event: eventNewMessage, Data: raw})

	if got.ChatID != "c1" || got.Message.ID != "m1" || got.Message.Content != "hi" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if errCalled {
		t.Fatalf("unexpected error callback")
	}
}

func TestDispatcherUnsubscribeIsSymmetric(t *testing.T) {
	var d Dispatcher
	calls := 0
	sub := d.Subscribe(eventAlert, func(json.RawMessage) { calls++ })

	d.Dispatch(Outbound{Event: eventAlert})
	d.Unsubscribe(sub)
	d.Dispatch(Outbound{Event: eventAlert})
	// Double unsubscribe must be harmless.
	d.Unsubscribe(sub)
	d.Dispatch(Outbound{Event: eventAlert})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDispatcherIndependentHandles(t *testing.T) {
	var d Dispatcher
	var a, b int
	subA := d.Subscribe(eventStartTyping, func(json.RawMessage) { a++ })
	d.Subscribe(eventStartTyping, func(json.RawMessage) { b++ })

	d.Dispatch(Outbound{Event: eventStartTyping})
	d.Unsubscribe(subA)
	d.Dispatch(Outbound{Event: eventStartTyping})

	if a != 1 || b != 2 {
		t.Fatalf("a = %d, b = %d, want 1 and 2", a, b)
	}
}

func TestDispatcherError(t *testing.T) {
	var errGot error
	var d Dispatcher
	d.SetOnError(func(err error) { errGot = err })

	d.Dispatch(Outbound{Error: &Error{Code: "unauthorized", Msg: "no token"}})
	if errGot == nil {
		t.Fatalf("expected error callback")
	}
	var ce *ChattrError
	if !errors.As(errGot, &ce) || ce.Code != ErrorUnauthorized {
		t.Fatalf("unexpected error: %v", errGot)
	}
}
