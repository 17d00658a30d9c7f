package rest

import "time"

// AvatarInfo is a hosted image reference.
type AvatarInfo struct {
	PublicID string `json:"public_id,omitempty"`
	URL      string `json:"url"`
}

// MemberInfo is one participant of a chat.
type MemberInfo struct {
	ID       string     `json:"_id"`
	Name     string     `json:"name"`
	Username string     `json:"username,omitempty"`
	Avatar   AvatarInfo `json:"avatar,omitempty"`
}

// ChatInfo is one entry of the chat list, or the populated detail of a
// single chat.
type ChatInfo struct {
	ID        string       `json:"_id"`
	Name      string       `json:"name"`
	GroupChat bool         `json:"groupChat"`
	Avatar    []string     `json:"avatar,omitempty"`
	Members   []MemberInfo `json:"members,omitempty"`
}

// ChatsResponse wraps the chat list.
type ChatsResponse struct {
	Chats []ChatInfo `json:"chats"`
}

// ChatDetailsResponse wraps one chat's metadata.
type ChatDetailsResponse struct {
	Chat ChatInfo `json:"chat"`
}

// AttachmentInfo is one uploaded file on a message.
type AttachmentInfo struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// MessageInfo represents a single message in the history.
type MessageInfo struct {
	ID          string           `json:"_id"`
	Sender      MemberInfo       `json:"sender"`
	Content     string           `json:"content,omitempty"`
	Attachments []AttachmentInfo `json:"attachments,omitempty"`
	ChatID      string           `json:"chat"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// MessagesResponse contains a page of messages with pagination info.
// Pages are 1-based and run newest to oldest.
type MessagesResponse struct {
	Messages   []MessageInfo `json:"messages"`
	TotalPages int           `json:"totalPages"`
}

// SendAttachmentsResponse acknowledges an attachment upload. The
// persisted message itself arrives over the event channel.
type SendAttachmentsResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Message string `json:"message"`
}
