package chattr

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// systemSender attributes server-originated alert notices.
var systemSender = User{ID: "system", Name: "Admin"}

// Section is one calendar date's worth of messages, ascending by
// creation time.
type Section struct {
	Date     time.Time // midnight UTC of the bucket
	Messages []Message
}

type msgSource int

const (
	srcLive msgSource = iota
	srcHistory
)

// Stream merges live-pushed messages with paginated history into one
// deduplicated, date-grouped sequence. The live list and history buffer
// are owned exclusively by the stream; callers mutate through the entry
// points below.
type Stream struct {
	clock clock.Clock

	mu      sync.Mutex
	live    []Message // newest first
	history []Message // in fetch order, older pages appended
	index   map[string]msgSource
}

// NewStream returns an empty merged stream.
func NewStream() *Stream {
	return newStream(clock.New())
}

func newStream(clk clock.Clock) *Stream {
	return &Stream{clock: clk, index: make(map[string]msgSource)}
}

// PushLive inserts a live-pushed message. A duplicate identifier
// replaces the earlier copy: last write wins, and a live copy always
// supersedes a history copy.
func (s *Stream) PushLive(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLiveLocked(m)
}

func (s *Stream) pushLiveLocked(m Message) {
	if src, ok := s.index[m.ID]; ok {
		switch src {
		case srcLive:
			s.replaceLocked(&s.live, m.ID, m)
			return
		case srcHistory:
			s.removeLocked(&s.history, m.ID)
		}
	}
	s.live = append([]Message{m}, s.live...)
	s.index[m.ID] = srcLive
}

// PushAlert injects a synthetic system notice with a receipt-time
// timestamp. Alerts never exist in history, so no deduplication applies.
func (s *Stream) PushAlert(chatID, text string) Message {
	m := Message{
		ID:        "alert-" + uuid.NewString(),
		Sender:    systemSender,
		Content:   text,
		ChatID:    chatID,
		CreatedAt: s.clock.Now().UTC(),
	}
	s.mu.Lock()
	s.live = append([]Message{m}, s.live...)
	s.index[m.ID] = srcLive
	s.mu.Unlock()
	return m
}

// AddHistory appends a fetched page to the history buffer. Identifiers
// already present, live or historical, are skipped.
func (s *Stream) AddHistory(page []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range page {
		if _, ok := s.index[m.ID]; ok {
			continue
		}
		s.history = append(s.history, m)
		s.index[m.ID] = srcHistory
	}
}

// Confirm atomically replaces the provisional message with its
// server-persisted twin. When no such provisional exists the confirmed
// message is merged as a plain live push. Reports whether a provisional
// was replaced.
func (s *Stream) Confirm(provisionalID string, m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.index[provisionalID]; ok && src == srcLive {
		s.removeLocked(&s.live, provisionalID)
		delete(s.index, provisionalID)
		s.pushLiveLocked(m)
		return true
	}
	s.pushLiveLocked(m)
	return false
}

// Len returns the number of distinct messages in the stream.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live) + len(s.history)
}

// Reset discards all buffered messages, for conversation exit.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = nil
	s.history = nil
	s.index = make(map[string]msgSource)
}

// Sections returns the merged output: ascending by timestamp within
// each calendar date bucket, buckets in chronological order. Network
// delivery order is not timestamp order, so the sort is not cosmetic.
func (s *Stream) Sections() []Section {
	s.mu.Lock()
	all := make([]Message, 0, len(s.live)+len(s.history))
	all = append(all, s.history...)
	all = append(all, s.live...)
	s.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	var sections []Section
	for _, m := range all {
		day := m.CreatedAt.UTC().Truncate(24 * time.Hour)
		if n := len(sections); n > 0 && sections[n-1].Date.Equal(day) {
			sections[n-1].Messages = append(sections[n-1].Messages, m)
			continue
		}
		sections = append(sections, Section{Date: day, Messages: []Message{m}})
	}
	return sections
}

func (s *Stream) replaceLocked(list *[]Message, id string, m Message) {
	for i := range *list {
		if (*list)[i].ID == id {
			(*list)[i] = m
			return
		}
	}
}

func (s *Stream) removeLocked(list *[]Message, id string) {
	for i := range *list {
		if (*list)[i].ID == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}
