package proxy

import "time"

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// DefaultAssistantID is used when a request names no assistant.
	DefaultAssistantID string

	// StreamTimeout bounds a streaming relay, including recording the turn
	// once the stream ends. Zero means no bound.
	StreamTimeout time.Duration
}
