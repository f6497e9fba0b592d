package llm

// Options contains the relay toggles passed through to the AI endpoint.
type Options struct {
	// Stream asks the endpoint for an incremental response.
	Stream bool

	// Temperature is the sampling control, forwarded verbatim.
	Temperature float64

	// Model optionally overrides the assistant's configured model.
	Model string

	// ConversationID is an optional session correlation token, forwarded verbatim.
	ConversationID string
}
