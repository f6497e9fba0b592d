package llm

// ChatRequest is the body posted to the conversational-AI endpoint.
type ChatRequest struct {
	ChatbotID      string    `json:"chatbotId"`
	Messages       []Message `json:"messages"`
	Stream         bool      `json:"stream"`
	Temperature    float64   `json:"temperature"`
	Model          string    `json:"model,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
}

// NewChatRequest builds the endpoint request for an assistant, its messages
// and the caller's options.
func NewChatRequest(assistantID string, messages []Message, opts Options) *ChatRequest {
	return &ChatRequest{
		ChatbotID:      assistantID,
		Messages:       messages,
		Stream:         opts.Stream,
		Temperature:    opts.Temperature,
		Model:          opts.Model,
		ConversationID: opts.ConversationID,
	}
}
