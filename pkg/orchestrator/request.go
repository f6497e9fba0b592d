package orchestrator

import (
	"strings"

	"github.com/papercomputeco/chatlog/pkg/archive"
	"github.com/papercomputeco/chatlog/pkg/llm"
)

// Session identifies the buffer a turn belongs to and the metadata stamped
// on its flush records.
type Session struct {
	AssistantID string
	TenantID    string
	SessionID   string
}

// Tenant returns the tenant id, or archive.UnknownTenant when absent.
func (s Session) Tenant() string {
	if s.TenantID == "" {
		return archive.UnknownTenant
	}
	return s.TenantID
}

func (s Session) validate() error {
	if strings.TrimSpace(s.AssistantID) == "" || strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Request is one inbound turn, already normalized to a message history.
type Request struct {
	Session

	// Messages is the conversation sent to the AI endpoint; the last entry
	// is the user message recorded in the turn.
	Messages []llm.Message

	// Options are passed through to the AI endpoint.
	Options llm.Options

	// ForceFlush flushes the session regardless of buffer length.
	ForceFlush bool
}

// Validate checks the required inputs.
func (r Request) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if len(r.Messages) == 0 {
		return ErrInvalidRequest
	}
	return nil
}

// UserText is the content of the latest message.
func (r Request) UserText() string {
	return r.Messages[len(r.Messages)-1].Content
}

func (r Request) chatRequest() *llm.ChatRequest {
	return llm.NewChatRequest(r.AssistantID, r.Messages, r.Options)
}
