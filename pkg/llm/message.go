package llm

import "strings"

// Message represents a single role-tagged message in a conversation.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message content
}

// Payload is the inbound conversation content. Exactly one of Single or
// History is meaningful: callers either send one message string or an
// ordered, role-tagged history.
type Payload struct {
	Single  string
	History []Message
}

// SingleMessage builds a Payload carrying one user message.
func SingleMessage(text string) Payload {
	return Payload{Single: text}
}

// MessageHistory builds a Payload carrying an ordered message history.
func MessageHistory(messages []Message) Payload {
	return Payload{History: messages}
}

// IsHistory reports whether the payload was supplied as a message history.
func (p Payload) IsHistory() bool {
	return p.History != nil
}

// Empty reports whether the payload carries nothing to relay.
func (p Payload) Empty() bool {
	if p.IsHistory() {
		return len(p.History) == 0
	}
	return strings.TrimSpace(p.Single) == ""
}

// Messages normalizes the payload to a message history. A single message
// becomes one "user" entry.
func (p Payload) Messages() []Message {
	if p.IsHistory() {
		out := make([]Message, len(p.History))
		copy(out, p.History)
		return out
	}
	if p.Empty() {
		return nil
	}
	return []Message{{Role: "user", Content: p.Single}}
}
