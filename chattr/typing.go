package chattr

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TypingIndicator is the display state for the conversation: at most
// one remote sender is shown at a time, last start wins.
type TypingIndicator struct {
	Active bool
	User   User
}

// TypingCoordinator turns keystrokes into rate-limited outbound typing
// signals and inbound signals into an expiring display state.
type TypingCoordinator struct {
	clock clock.Clock
	quiet time.Duration

	emitStart func()
	emitStop  func()

	mu         sync.Mutex
	amTyping   bool
	localTimer *clock.Timer

	display      *User
	remoteTimers map[string]*clock.Timer // one slot per remote sender
	onChange     func(TypingIndicator)
}

func newTypingCoordinator(clk clock.Clock, quiet time.Duration, emitStart, emitStop func()) *TypingCoordinator {
	return &TypingCoordinator{
		clock:        clk,
		quiet:        quiet,
		emitStart:    emitStart,
		emitStop:     emitStop,
		remoteTimers: make(map[string]*clock.Timer),
	}
}

// OnChange registers the callback fired on every indicator transition.
func (t *TypingCoordinator) OnChange(fn func(TypingIndicator)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Keystroke records local typing activity. The first keystroke after an
// idle period emits one start signal; each keystroke reschedules the
// quiet timer, and its expiry emits the stop signal.
func (t *TypingCoordinator) Keystroke() {
	t.mu.Lock()
	started := !t.amTyping
	t.amTyping = true
	if t.localTimer != nil {
		t.localTimer.Stop()
	}
	t.localTimer = t.clock.AfterFunc(t.quiet, t.localExpire)
	t.mu.Unlock()

	if started {
		t.emitStart()
	}
}

// MessageSent clears the am-typing state on send, emitting the stop
// signal if a start was outstanding.
func (t *TypingCoordinator) MessageSent() {
	t.mu.Lock()
	wasTyping := t.amTyping
	t.amTyping = false
	if t.localTimer != nil {
		t.localTimer.Stop()
		t.localTimer = nil
	}
	t.mu.Unlock()

	if wasTyping {
		t.emitStop()
	}
}

// AmTyping reports whether a local start signal is outstanding.
func (t *TypingCoordinator) AmTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.amTyping
}

// Indicator returns the current remote display state.
func (t *TypingCoordinator) Indicator() TypingIndicator {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.display == nil {
		return TypingIndicator{}
	}
	return TypingIndicator{Active: true, User: *t.display}
}

// RemoteStart records a remote sender as the displayed typist. Each
// sender owns one expiry timer slot, cancelled before rescheduling, so
// a sender whose stop signal never arrives clears after the quiet
// period instead of sticking forever.
func (t *TypingCoordinator) RemoteStart(u User) {
	t.mu.Lock()
	if prev, ok := t.remoteTimers[u.ID]; ok {
		prev.Stop()
	}
	t.remoteTimers[u.ID] = t.clock.AfterFunc(t.quiet, func() { t.remoteExpire(u.ID) })
	user := u
	t.display = &user
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(TypingIndicator{Active: true, User: u})
	}
}

// RemoteStop clears the displayed typist. Stop signals carry no sender,
// so the displayed sender's timer slot is released.
func (t *TypingCoordinator) RemoteStop() {
	t.mu.Lock()
	if t.display == nil {
		t.mu.Unlock()
		return
	}
	if timer, ok := t.remoteTimers[t.display.ID]; ok {
		timer.Stop()
		delete(t.remoteTimers, t.display.ID)
	}
	t.display = nil
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(TypingIndicator{})
	}
}

// Reset drops all typing state and timers, for conversation exit.
func (t *TypingCoordinator) Reset() {
	t.mu.Lock()
	t.amTyping = false
	if t.localTimer != nil {
		t.localTimer.Stop()
		t.localTimer = nil
	}
	for id, timer := range t.remoteTimers {
		timer.Stop()
		delete(t.remoteTimers, id)
	}
	t.display = nil
	t.mu.Unlock()
}

func (t *TypingCoordinator) localExpire() {
	t.mu.Lock()
	if !t.amTyping {
		t.mu.Unlock()
		return
	}
	t.amTyping = false
	t.localTimer = nil
	t.mu.Unlock()

	t.emitStop()
}

func (t *TypingCoordinator) remoteExpire(userID string) {
	t.mu.Lock()
	delete(t.remoteTimers, userID)
	if t.display == nil || t.display.ID != userID {
		t.mu.Unlock()
		return
	}
	t.display = nil
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(TypingIndicator{})
	}
}
