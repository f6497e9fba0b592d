package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatlog/pkg/llm"
)

// DefaultChatbaseURL is the Chatbase chat endpoint.
const DefaultChatbaseURL = "https://www.chatbase.co/api/v1/chat"

// ChatbaseConfig configures the Chatbase client.
type ChatbaseConfig struct {
	// URL of the chat endpoint. Empty means DefaultChatbaseURL.
	URL string

	// APIKey is sent as a bearer credential.
	APIKey string

	// Timeout bounds a single Send call. Streams are bounded by the caller's context.
	Timeout time.Duration
}

// Chatbase is a Client for the Chatbase chat API.
type Chatbase struct {
	config     ChatbaseConfig
	logger     *zap.Logger
	httpClient *http.Client
}

// NewChatbase creates a Chatbase client.
func NewChatbase(config ChatbaseConfig, logger *zap.Logger) *Chatbase {
	if config.URL == "" {
		config.URL = DefaultChatbaseURL
	}

	logger.Debug("chatbase relay configured",
		zap.String("url", config.URL),
		zap.Bool("api_key_set", config.APIKey != ""),
		zap.Duration("timeout", config.Timeout),
	)

	return &Chatbase{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{},
	}
}

// Send forwards a non-streaming request to Chatbase.
func (c *Chatbase) Send(ctx context.Context, req *llm.ChatRequest) (*llm.Reply, error) {
	out := *req
	out.Stream = false

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	httpResp, err := c.do(ctx, &out)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.Warn("chatbase returned non-success status",
			zap.Int("status", httpResp.StatusCode),
			zap.Int("body_size", len(body)),
		)
	}

	reply, err := llm.ParseReply(httpResp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("status %d: %w", httpResp.StatusCode, err)
	}

	return reply, nil
}

// Stream forwards a streaming request to Chatbase. The caller owns the
// returned body and must close it.
func (c *Chatbase) Stream(ctx context.Context, req *llm.ChatRequest) (io.ReadCloser, error) {
	out := *req
	out.Stream = true

	httpResp, err := c.do(ctx, &out)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.Warn("chatbase stream returned non-success status",
			zap.Int("status", httpResp.StatusCode),
		)
	}

	return httpResp.Body, nil
}

func (c *Chatbase) do(ctx context.Context, req *llm.ChatRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("forwarding request to chatbase",
		zap.String("url", c.config.URL),
		zap.String("chatbot_id", req.ChatbotID),
		zap.Int("message_count", len(req.Messages)),
		zap.Bool("stream", req.Stream),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	return httpResp, nil
}
