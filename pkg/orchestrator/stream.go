package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// TurnStream relays an incremental reply. Reading it yields the endpoint's
// body as it arrives; Finish records the accumulated reply as a turn.
type TurnStream struct {
	o    *Orchestrator
	req  Request
	body io.ReadCloser
	text strings.Builder
}

// OpenStream validates req and opens a streaming call to the AI endpoint.
func (o *Orchestrator) OpenStream(ctx context.Context, req Request) (*TurnStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := o.relay.Stream(ctx, req.chatRequest())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return &TurnStream{o: o, req: req, body: body}, nil
}

// Read implements io.Reader.
func (s *TurnStream) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	s.text.Write(p[:n])
	return n, err
}

// Text returns the reply accumulated so far.
func (s *TurnStream) Text() string {
	return s.text.String()
}

// Finish closes the upstream body and records the turn. An empty reply is
// not recorded.
func (s *TurnStream) Finish(ctx context.Context) (*FlushResult, error) {
	if err := s.body.Close(); err != nil {
		s.o.logger.Debug("closing upstream stream", zap.Error(err))
	}

	text := s.text.String()
	if text == "" {
		s.o.logger.Warn("stream ended without a reply, turn not recorded",
			zap.String("session_id", s.req.SessionID),
		)
		return nil, nil
	}

	return s.o.Record(ctx, s.req.Session, s.req.UserText(), text, s.req.ForceFlush)
}
