package chattr

import "encoding/json"

const (
	ProtocolVersion = 1

	eventHello = "HELLO"

	// Room operations, client -> server.
	eventChatJoined = "CHAT_JOINED"
	eventChatLeave  = "CHAT_LEAVE"
	eventNewMessage = "NEW_MESSAGE"

	// Typing signals, mirrored in both directions.
	eventStartTyping = "START_TYPING"
	eventStopTyping  = "STOP_TYPING"

	// Server -> client only.
	eventAlert           = "ALERT"
	eventNewMessageAlert = "NEW_MESSAGE_ALERT"
	eventNewRequest      = "NEW_REQUEST"
	eventRefetchChats    = "REFETCH_CHATS"
	eventOnlineUsers     = "ONLINE_USERS"
)

// Inbound represents the envelope from client to server.
type Inbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Outbound is the envelope server -> client.
type Outbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// HelloPayload initiates the session.
type HelloPayload struct {
	Protocol int    `json:"protocol,omitempty"`
	Token    string `json:"token,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// RoomPayload joins or leaves a conversation. Members lets the server
// fan the signal out to the conversation's other participants.
type RoomPayload struct {
	UserID  string   `json:"userId"`
	Members []string `json:"members"`
}

// TypingPayload announces a typing transition in a conversation.
// User is set on START_TYPING only; STOP_TYPING carries no sender.
type TypingPayload struct {
	ChatID  string   `json:"chatId"`
	Members []string `json:"members"`
	User    *User    `json:"user,omitempty"`
}

// SendPayload publishes a message body to a conversation. The persisted
// Message comes back over the channel as a NEW_MESSAGE event.
type SendPayload struct {
	ChatID  string   `json:"chatId"`
	Members []string `json:"members"`
	Message string   `json:"message"`
}

// Error describes a protocol error.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Msg
}

// UnmarshalData decodes RawMessage into target.
func UnmarshalData(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}
