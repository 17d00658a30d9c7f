package chattr

import (
	"sort"
	"sync"
)

// MessageAlert is the unread count for one background conversation.
type MessageAlert struct {
	ChatID string `json:"chatId"`
	Count  int    `json:"count"`
}

// AlertSeed is the persisted unread state: loaded once at startup and
// handed back through OnChange whenever it changes. The tracker itself
// never touches storage.
type AlertSeed struct {
	NotificationCount int            `json:"notificationCount"`
	MessageAlerts     []MessageAlert `json:"alerts"`
}

// AlertTracker maintains the per-chat unread counts and the friend
// request notification count shown on the chat list.
type AlertTracker struct {
	mu            sync.Mutex
	notifications int
	counts        map[string]int
	onChange      func(AlertSeed)
}

func newAlertTracker() *AlertTracker {
	return &AlertTracker{counts: make(map[string]int)}
}

// Seed loads the persisted state. Call once at startup, before events
// flow. Seeding does not fire OnChange.
func (t *AlertTracker) Seed(s AlertSeed) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifications = s.NotificationCount
	t.counts = make(map[string]int, len(s.MessageAlerts))
	for _, a := range s.MessageAlerts {
		if a.Count > 0 {
			t.counts[a.ChatID] = a.Count
		}
	}
}

// OnChange registers the callback that receives every new snapshot, for
// external persistence.
func (t *AlertTracker) OnChange(fn func(AlertSeed)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Snapshot returns the current state, chats sorted by id.
func (t *AlertTracker) Snapshot() AlertSeed {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// NotificationCount returns the pending friend request count.
func (t *AlertTracker) NotificationCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notifications
}

// CountFor returns the unread message count for one chat.
func (t *AlertTracker) CountFor(chatID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[chatID]
}

// ClearChat drops the unread count for a chat, typically on entering it.
func (t *AlertTracker) ClearChat(chatID string) {
	t.mu.Lock()
	if _, ok := t.counts[chatID]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.counts, chatID)
	t.emitAndUnlock()
}

// ResetNotifications zeroes the notification count.
func (t *AlertTracker) ResetNotifications() {
	t.mu.Lock()
	if t.notifications == 0 {
		t.mu.Unlock()
		return
	}
	t.notifications = 0
	t.emitAndUnlock()
}

// DecrementNotifications drops the notification count by one, to a
// floor of zero.
func (t *AlertTracker) DecrementNotifications() {
	t.mu.Lock()
	if t.notifications == 0 {
		t.mu.Unlock()
		return
	}
	t.notifications--
	t.emitAndUnlock()
}

func (t *AlertTracker) bumpMessages(chatID string) {
	t.mu.Lock()
	t.counts[chatID]++
	t.emitAndUnlock()
}

func (t *AlertTracker) bumpNotifications() {
	t.mu.Lock()
	t.notifications++
	t.emitAndUnlock()
}

// emitAndUnlock snapshots under the held lock, releases it, then fires the
// callback so listeners may call back into the tracker.
func (t *AlertTracker) emitAndUnlock() {
	snap := t.snapshotLocked()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (t *AlertTracker) snapshotLocked() AlertSeed {
	alerts := make([]MessageAlert, 0, len(t.counts))
	for id, n := range t.counts {
		alerts = append(alerts, MessageAlert{ChatID: id, Count: n})
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ChatID < alerts[j].ChatID })
	return AlertSeed{NotificationCount: t.notifications, MessageAlerts: alerts}
}
