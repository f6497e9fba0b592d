package llm

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrUnparseable is returned when the endpoint body is not a JSON value.
var ErrUnparseable = errors.New("unparseable reply body")

// Reply is the endpoint's answer to a ChatRequest.
type Reply struct {
	// StatusCode is the HTTP status the endpoint answered with. Non-2xx
	// replies are still returned to the caller as-is.
	StatusCode int

	// Raw is the endpoint's JSON body, unmodified.
	Raw json.RawMessage

	// Text is the assistant's reply text. It is never empty: when the body
	// carries no "text" field it falls back to the compacted body.
	Text string
}

// ParseReply validates an endpoint body and extracts the reply text.
func ParseReply(statusCode int, body []byte) (*Reply, error) {
	if !json.Valid(body) {
		return nil, ErrUnparseable
	}

	raw := make([]byte, len(body))
	copy(raw, body)

	return &Reply{
		StatusCode: statusCode,
		Raw:        raw,
		Text:       extractText(raw),
	}, nil
}

func extractText(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		if text, ok := fields["text"].(string); ok && text != "" {
			return text
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return string(body)
	}
	return compact.String()
}
