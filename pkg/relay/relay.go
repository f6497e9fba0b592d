// Package relay forwards conversation turns to the conversational-AI endpoint.
package relay

import (
	"context"
	"io"

	"github.com/papercomputeco/chatlog/pkg/llm"
)

// Client sends chat requests to the AI endpoint.
type Client interface {
	// Send posts req with streaming disabled and returns the parsed reply.
	// A non-2xx status is not an error: the reply carries the status and
	// whatever body the endpoint answered with.
	Send(ctx context.Context, req *llm.ChatRequest) (*llm.Reply, error)

	// Stream posts req with streaming enabled and returns the endpoint body
	// for the caller to consume incrementally.
	Stream(ctx context.Context, req *llm.ChatRequest) (io.ReadCloser, error)
}
