package chattr

import (
	"context"
	"sync"

	"github.com/chattr-app/chattr-sdk/chattr-sdk-go/chattr/rest"
)

// HistoryPage is one chunk of a conversation's message history.
type HistoryPage struct {
	Messages   []Message
	TotalPages int
}

// Fetcher retrieves one page of history for a conversation. Pages are
// 1-based and ordered newest to oldest.
type Fetcher interface {
	FetchPage(ctx context.Context, chatID string, page int) (HistoryPage, error)
}

// Paginator walks a conversation's history strictly forward: page 1,
// then 2, and so on, advancing only after the prior fetch resolves.
// State is per conversation and discarded on exit.
type Paginator struct {
	fetch  Fetcher
	chatID string

	mu       sync.Mutex
	page     int // last successfully fetched page
	inFlight bool
	hasMore  bool
}

// NewPaginator starts paging the conversation's history from page 1.
func NewPaginator(f Fetcher, chatID string) *Paginator {
	return &Paginator{fetch: f, chatID: chatID, hasMore: true}
}

// HasMore reports whether another page may exist. It stays true after a
// failed fetch so the caller can retry.
func (p *Paginator) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// NextPage fetches the next older page. Exhausted pagination is a no-op
// returning no messages and no error; a request while one is in flight
// fails with ErrorFetchInFlight. An empty page is terminal.
func (p *Paginator) NextPage(ctx context.Context) ([]Message, error) {
	p.mu.Lock()
	if !p.hasMore {
		p.mu.Unlock()
		return nil, nil
	}
	if p.inFlight {
		p.mu.Unlock()
		return nil, NewError(ErrorFetchInFlight, "page fetch already in flight")
	}
	p.inFlight = true
	next := p.page + 1
	p.mu.Unlock()

	res, err := p.fetch.FetchPage(ctx, p.chatID, next)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if err != nil {
		return nil, WrapError(ErrorFetch, "fetch history page", err)
	}
	if len(res.Messages) == 0 {
		p.hasMore = false
		return nil, nil
	}
	p.page = next
	if res.TotalPages > 0 && p.page >= res.TotalPages {
		p.hasMore = false
	}
	return res.Messages, nil
}

// restFetcher adapts the REST client to the Fetcher interface.
type restFetcher struct {
	rc *rest.Client
}

func (f restFetcher) FetchPage(ctx context.Context, chatID string, page int) (HistoryPage, error) {
	res, err := f.rc.GetMessages(ctx, chatID, page)
	if err != nil {
		return HistoryPage{}, err
	}
	out := HistoryPage{TotalPages: res.TotalPages, Messages: make([]Message, 0, len(res.Messages))}
	for _, m := range res.Messages {
		out.Messages = append(out.Messages, messageFromREST(m))
	}
	return out, nil
}

func messageFromREST(m rest.MessageInfo) Message {
	msg := Message{
		ID:        m.ID,
		Content:   m.Content,
		ChatID:    m.ChatID,
		CreatedAt: m.CreatedAt,
		Sender: User{
			ID:       m.Sender.ID,
			Name:     m.Sender.Name,
			Username: m.Sender.Username,
			Avatar:   Avatar{PublicID: m.Sender.Avatar.PublicID, URL: m.Sender.Avatar.URL},
		},
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{PublicID: a.PublicID, URL: a.URL})
	}
	return msg
}
