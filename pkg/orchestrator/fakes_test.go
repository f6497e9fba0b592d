package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/papercomputeco/chatlog/pkg/buffer"
	"github.com/papercomputeco/chatlog/pkg/llm"
)

// fakeRelay answers every Send with "re: <last message>".
type fakeRelay struct {
	mu       sync.Mutex
	requests []*llm.ChatRequest
	err      error
	reply    func(req *llm.ChatRequest) (*llm.Reply, error)
	stream   string
}

func (f *fakeRelay) Send(_ context.Context, req *llm.ChatRequest) (*llm.Reply, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply(req)
	}
	text := "re: " + req.Messages[len(req.Messages)-1].Content
	return llm.ParseReply(200, []byte(`{"text":"`+text+`"}`))
}

func (f *fakeRelay) Stream(_ context.Context, req *llm.ChatRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

func (f *fakeRelay) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// countingBuffer wraps a MemoryBuffer, counts calls and can fail them.
type countingBuffer struct {
	*buffer.MemoryBuffer

	mu       sync.Mutex
	appends  int
	drains   int
	failWith error
	failTrim error
}

func newCountingBuffer() *countingBuffer {
	return &countingBuffer{MemoryBuffer: buffer.NewMemoryBuffer()}
}

func (c *countingBuffer) Append(ctx context.Context, sessionID string, turn buffer.Turn) error {
	c.mu.Lock()
	c.appends++
	err := c.failWith
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.MemoryBuffer.Append(ctx, sessionID, turn)
}

func (c *countingBuffer) Drain(ctx context.Context, sessionID string) ([]buffer.Turn, error) {
	c.mu.Lock()
	c.drains++
	c.mu.Unlock()
	return c.MemoryBuffer.Drain(ctx, sessionID)
}

func (c *countingBuffer) Trim(ctx context.Context, sessionID string, n int) error {
	if c.failTrim != nil {
		return c.failTrim
	}
	return c.MemoryBuffer.Trim(ctx, sessionID, n)
}

func (c *countingBuffer) appendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appends
}

var errBoom = errors.New("boom")
