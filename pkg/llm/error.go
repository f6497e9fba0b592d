// Package llm provides the wire representations of chat relay requests and
// replies shared by the relay client and the HTTP surface.
package llm

// ErrorResponse is the body returned to callers on a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
