package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/chatlog/pkg/llm"
	"github.com/papercomputeco/chatlog/pkg/orchestrator"
)

// inboundRequest accepts both request shapes:
//
//	A: {chatbotId?, messages: [{role, content}], conversationId, stream?, temperature?, model?, tenant_id?, flush?}
//	B: {assistant_id, message, chat_session_id, tenant_id?, flush?}
type inboundRequest struct {
	// Shape A
	ChatbotID      string          `json:"chatbotId"`
	Messages       json.RawMessage `json:"messages"`
	ConversationID string          `json:"conversationId"`
	Stream         bool            `json:"stream"`
	Temperature    float64         `json:"temperature"`
	Model          string          `json:"model"`

	// Shape B
	AssistantID   string  `json:"assistant_id"`
	Message       *string `json:"message"`
	ChatSessionID string  `json:"chat_session_id"`

	// Both
	TenantID string `json:"tenant_id"`
	Flush    bool   `json:"flush"`
}

func (in *inboundRequest) isMessageHistory() bool {
	return len(in.Messages) > 0 || in.Message == nil
}

// payload resolves the tagged variant. A "messages" value that is not an
// array of role-tagged messages yields an empty history.
func (in *inboundRequest) payload() llm.Payload {
	if !in.isMessageHistory() {
		return llm.SingleMessage(*in.Message)
	}

	raw := bytes.TrimSpace(in.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		return llm.MessageHistory([]llm.Message{})
	}

	var history []llm.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return llm.MessageHistory([]llm.Message{})
	}
	return llm.MessageHistory(history)
}

// normalize maps either shape onto an orchestrator request.
func (in *inboundRequest) normalize(defaultAssistantID string) orchestrator.Request {
	p := in.payload()

	req := orchestrator.Request{
		Session: orchestrator.Session{
			TenantID: in.TenantID,
		},
		Messages:   p.Messages(),
		ForceFlush: in.Flush,
	}

	if p.IsHistory() {
		req.AssistantID = in.ChatbotID
		if req.AssistantID == "" {
			req.AssistantID = defaultAssistantID
		}
		req.SessionID = in.ConversationID
		req.Options = llm.Options{
			Stream:         in.Stream,
			Temperature:    in.Temperature,
			Model:          in.Model,
			ConversationID: in.ConversationID,
		}
		return req
	}

	req.AssistantID = in.AssistantID
	req.SessionID = in.ChatSessionID
	req.Options = llm.Options{ConversationID: in.ChatSessionID}
	return req
}

func parseInbound(body []byte) (*inboundRequest, error) {
	var in inboundRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return &in, nil
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse request body: %w", err)
	}
	return &in, nil
}
