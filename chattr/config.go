package chattr

import "time"

// Config controls how the SDK connects.
type Config struct {
	URL         string // WebSocket endpoint
	RESTBaseURL string // REST API base, e.g. "https://host/api/v1"; empty disables Client.REST
	Token       string // JWT for hello and REST auth
	User        User   // local identity, carried on join/leave and typing signals

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// AutoReconnect redials forever with a fixed ReconnectDelay between
	// attempts. The transport is always a single WebSocket; there is no
	// polling fallback, so server push ordering survives reconnects.
	AutoReconnect  bool
	ReconnectDelay time.Duration

	// TypingTimeout is the quiet period after which a typing sender is
	// considered done composing.
	TypingTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		AutoReconnect:    true,
		ReconnectDelay:   time.Second,
		TypingTimeout:    3 * time.Second,
	}
}
