package chattr

import (
	"path"
	"strings"
	"time"
)

// Avatar is a hosted image reference.
type Avatar struct {
	PublicID string `json:"public_id,omitempty"`
	URL      string `json:"url"`
}

// User identifies a chat participant.
type User struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Avatar   Avatar `json:"avatar,omitempty"`
}

// MediaKind classifies an attachment by its content.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaFile  MediaKind = "file"
)

// Attachment is one uploaded file on a message.
type Attachment struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Kind infers the media kind from the attachment URL extension.
func (a Attachment) Kind() MediaKind {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(a.URL), ".")) {
	case "png", "jpg", "jpeg", "gif", "webp":
		return MediaImage
	case "mp4", "webm", "ogv", "mov":
		return MediaVideo
	case "mp3", "wav", "ogg", "m4a":
		return MediaAudio
	default:
		return MediaFile
	}
}

// Message is one chat message. Immutable once received; the stream only
// ever inserts or replaces whole values.
type Message struct {
	ID          string       `json:"_id"`
	Sender      User         `json:"sender"`
	Content     string       `json:"content,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ChatID      string       `json:"chat"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// MessageEvent delivers a persisted message to a conversation.
type MessageEvent struct {
	ChatID  string  `json:"chatId"`
	Message Message `json:"message"`
}

// AlertEvent is a server-originated system notice for a conversation.
type AlertEvent struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// TypingEvent mirrors a typing signal back to conversation members.
// User is absent on STOP_TYPING.
type TypingEvent struct {
	ChatID string `json:"chatId"`
	User   User   `json:"user,omitempty"`
}

// MessageAlertEvent bumps the unread counter for a background chat.
type MessageAlertEvent struct {
	ChatID string `json:"chatId"`
}
