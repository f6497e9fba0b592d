// Package proxy provides the HTTP surface of the chat relay: it relays chat
// turns to the AI endpoint through the turn orchestrator and exposes session
// buffer maintenance endpoints.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatlog/pkg/llm"
	"github.com/papercomputeco/chatlog/pkg/orchestrator"
)

const (
	errMissingFields = "Missing required fields"
	errInternal      = "Internal error"
)

// Proxy is the stateless HTTP front of the turn orchestrator. Every request
// is handled independently; session continuity lives in the orchestrator's buffer.
type Proxy struct {
	config Config
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
	server *fiber.App
}

// New creates a new Proxy.
func New(config Config, orch *orchestrator.Orchestrator, logger *zap.Logger) *Proxy {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	p := &Proxy{
		config: config,
		orch:   orch,
		logger: logger,
		server: app,
	}

	app.Post("/api/chat", p.handleChat)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	// Session buffer maintenance
	app.Get("/sessions/:id", p.handleSessionStats)
	app.Post("/sessions/:id/flush", p.handleFlush)

	return p
}

// Run starts the server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting chat relay",
		zap.String("listen", p.config.ListenAddr),
		zap.String("default_assistant_id", p.config.DefaultAssistantID),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// Handler exposes the routes as a net/http handler for hosting the relay
// inside another server or a function runtime.
func (p *Proxy) Handler() http.Handler {
	return adaptor.FiberApp(p.server)
}

// Shutdown stops the server.
func (p *Proxy) Shutdown() error {
	return p.server.Shutdown()
}

// handleChat relays one chat turn. It answers 200 with the AI endpoint's raw
// body, 400 when required fields are missing, and 500 on any other failure.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()
	requestID := uuid.NewString()
	c.Set("X-Request-Id", requestID)
	log := p.logger.With(zap.String("request_id", requestID))

	in, err := parseInbound(c.Body())
	if err != nil {
		log.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errInternal})
	}

	req := in.normalize(p.config.DefaultAssistantID)

	log.Debug("received chat request",
		zap.String("assistant_id", req.AssistantID),
		zap.String("session_id", req.SessionID),
		zap.Int("message_count", len(req.Messages)),
		zap.Bool("stream", req.Options.Stream),
		zap.Bool("flush", req.ForceFlush),
	)

	if req.Options.Stream {
		return p.handleStreamingChat(c, log, req, startTime)
	}

	result, err := p.orch.Handle(c.UserContext(), req)
	if err != nil {
		return p.errorResponse(c, log, err)
	}

	log.Info("chat turn relayed",
		zap.String("session_id", req.SessionID),
		zap.Int("upstream_status", result.Reply.StatusCode),
		zap.Bool("flushed", result.Flush != nil),
		zap.Duration("duration", time.Since(startTime)),
	)

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(result.Reply.Raw)
}

// handleStreamingChat relays the endpoint's incremental reply as it arrives
// and records the turn once the stream ends.
func (p *Proxy) handleStreamingChat(c *fiber.Ctx, log *zap.Logger, req orchestrator.Request, startTime time.Time) error {
	// The stream outlives this handler, so it cannot use the request context.
	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if p.config.StreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.config.StreamTimeout)
	}

	stream, err := p.orch.OpenStream(ctx, req)
	if err != nil {
		cancel()
		return p.errorResponse(c, log, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Set(fiber.HeaderTransferEncoding, "chunked")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		chunk := make([]byte, 4096)
		for {
			n, err := stream.Read(chunk)
			if n > 0 {
				_, _ = w.Write(chunk[:n])
				if flushErr := w.Flush(); flushErr != nil {
					log.Warn("client went away during stream", zap.Error(flushErr))
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Error("error reading stream", zap.Error(err))
				}
				break
			}
		}

		flush, err := stream.Finish(ctx)
		if err != nil {
			log.Error("failed to record streamed turn", zap.Error(err))
			return
		}

		log.Info("streamed chat turn relayed",
			zap.String("session_id", req.SessionID),
			zap.Bool("flushed", flush != nil),
			zap.Duration("duration", time.Since(startTime)),
		)
	}))

	return nil
}

// SessionStats describes a session's buffer.
type SessionStats struct {
	SessionID string `json:"session_id"`
	Buffered  int    `json:"buffered"`
}

// FlushResponse describes a manual flush.
type FlushResponse struct {
	SessionID string `json:"session_id"`
	Records   int    `json:"records"`
}

// handleSessionStats returns how many turns a session has buffered.
func (p *Proxy) handleSessionStats(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	n, err := p.orch.Length(c.UserContext(), sessionID)
	if err != nil {
		return p.errorResponse(c, p.logger, err)
	}

	return c.JSON(SessionStats{SessionID: sessionID, Buffered: n})
}

// handleFlush writes a session's buffered turns to durable storage now.
// The assistant and tenant are taken from the query string.
func (p *Proxy) handleFlush(c *fiber.Ctx) error {
	s := orchestrator.Session{
		AssistantID: c.Query("assistant_id", p.config.DefaultAssistantID),
		TenantID:    c.Query("tenant_id"),
		SessionID:   c.Params("id"),
	}

	result, err := p.orch.Flush(c.UserContext(), s)
	if err != nil {
		return p.errorResponse(c, p.logger, err)
	}

	p.logger.Info("manual flush",
		zap.String("session_id", s.SessionID),
		zap.Int("records", len(result.Records)),
	)

	return c.JSON(FlushResponse{SessionID: s.SessionID, Records: len(result.Records)})
}

// errorResponse collapses orchestrator failures into the two caller-visible
// errors. Detail only reaches the log.
func (p *Proxy) errorResponse(c *fiber.Ctx, log *zap.Logger, err error) error {
	if errors.Is(err, orchestrator.ErrInvalidRequest) {
		log.Debug("rejected request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: errMissingFields})
	}

	log.Error("request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errInternal})
}
