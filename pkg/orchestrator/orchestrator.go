// Package orchestrator implements the turn protocol: relay a message to the
// AI endpoint, buffer the resulting turn, and flush buffered turns to durable
// storage when the flush policy says so.
//
// The orchestrator holds no state between calls. Continuity lives entirely
// in the buffer, so any number of replicas may serve the same sessions.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatlog/pkg/archive"
	"github.com/papercomputeco/chatlog/pkg/buffer"
	"github.com/papercomputeco/chatlog/pkg/llm"
	"github.com/papercomputeco/chatlog/pkg/logger"
	"github.com/papercomputeco/chatlog/pkg/relay"
)

// FlushThreshold is the buffer length at which a session is flushed.
const FlushThreshold = 3

// Config tunes the orchestrator.
type Config struct {
	// Locker, when set, makes append through drain exclusive per session.
	// Without it, concurrent turns for one session may race: both may
	// flush, or a turn may be swept into another invocation's batch.
	Locker buffer.Locker

	// LockTimeout bounds the wait for a session lock. Zero waits for the
	// request context only.
	LockTimeout time.Duration

	// ClearAfterWrite removes turns from the buffer only after the durable
	// write succeeds. When false the buffer is drained before the write, and
	// a failed write loses that batch.
	ClearAfterWrite bool

	// MaxBatch caps how many buffered entries one flush writes when
	// ClearAfterWrite is set; the rest wait for the next flush. Zero means
	// no cap. Set it to the durable store's per-call record limit, or a
	// backlog left by failed writes can outgrow that limit and never flush.
	MaxBatch int
}

// Result is the outcome of a handled turn.
type Result struct {
	// Reply is the AI endpoint's reply, returned to the caller as-is.
	Reply *llm.Reply

	// Flush is non-nil when this turn triggered a flush.
	Flush *FlushResult
}

// FlushResult describes a completed flush.
type FlushResult struct {
	Records []archive.FlushRecord
}

// Orchestrator runs the turn protocol against its collaborators.
type Orchestrator struct {
	config Config
	relay  relay.Client
	buffer buffer.Buffer
	writer archive.Writer
	logger *zap.Logger
	now    func() time.Time
}

// New creates an Orchestrator.
func New(config Config, client relay.Client, buf buffer.Buffer, writer archive.Writer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		config: config,
		relay:  client,
		buffer: buf,
		writer: writer,
		logger: logger,
		now:    time.Now,
	}
}

// Handle relays req to the AI endpoint, buffers the turn and applies the
// flush policy. The reply is returned whether or not a flush happened; any
// failure after validation fails the whole call.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reply, err := o.relay.Send(ctx, req.chatRequest())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	o.logger.Debug("received reply from relay",
		zap.String("session_id", req.SessionID),
		zap.Int("status", reply.StatusCode),
		zap.String("text_preview", logger.Truncate(reply.Text, 100)),
	)

	flush, err := o.Record(ctx, req.Session, req.UserText(), reply.Text, req.ForceFlush)
	if err != nil {
		return nil, err
	}

	return &Result{Reply: reply, Flush: flush}, nil
}

// Record appends one turn to the session buffer and flushes when forced or
// when the buffer has reached FlushThreshold.
func (o *Orchestrator) Record(ctx context.Context, s Session, userText, botText string, force bool) (*FlushResult, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	unlock, err := o.lock(ctx, s.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	turn := buffer.NewTurn(userText, botText, o.now())
	if err := o.buffer.Append(ctx, s.SessionID, turn); err != nil {
		return nil, fmt.Errorf("%w: append: %w", ErrCache, err)
	}

	n, err := o.buffer.Length(ctx, s.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: length: %w", ErrCache, err)
	}

	o.logger.Debug("buffered turn",
		zap.String("session_id", s.SessionID),
		zap.Int("buffer_length", n),
		zap.Bool("force_flush", force),
	)

	if !force && n < FlushThreshold {
		return nil, nil
	}

	return o.flush(ctx, s)
}

// Flush writes every buffered turn of a session to durable storage,
// whatever the buffer length, up to MaxBatch when ClearAfterWrite is set.
// An empty buffer produces an empty batch.
func (o *Orchestrator) Flush(ctx context.Context, s Session) (*FlushResult, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	unlock, err := o.lock(ctx, s.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return o.flush(ctx, s)
}

// Length reports how many turns a session has buffered.
func (o *Orchestrator) Length(ctx context.Context, sessionID string) (int, error) {
	n, err := o.buffer.Length(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: length: %w", ErrCache, err)
	}
	return n, nil
}

func (o *Orchestrator) flush(ctx context.Context, s Session) (*FlushResult, error) {
	if o.config.ClearAfterWrite {
		return o.flushRetaining(ctx, s)
	}

	turns, err := o.buffer.Drain(ctx, s.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: drain: %w", ErrCache, err)
	}

	records := ToRecords(s, turns)
	if err := o.writer.WriteBatch(ctx, records); err != nil {
		o.logger.Error("durable write failed after drain, batch is lost",
			zap.String("session_id", s.SessionID),
			zap.Int("records", len(records)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	o.logger.Info("flushed session",
		zap.String("session_id", s.SessionID),
		zap.Int("records", len(records)),
	)
	return &FlushResult{Records: records}, nil
}

// flushRetaining writes the head of the buffer first and trims exactly the
// entries it read afterwards, so a failed write leaves them buffered for the
// next flush.
func (o *Orchestrator) flushRetaining(ctx context.Context, s Session) (*FlushResult, error) {
	turns, read, err := o.buffer.Head(ctx, s.SessionID, o.config.MaxBatch)
	if err != nil {
		return nil, fmt.Errorf("%w: head: %w", ErrCache, err)
	}

	records := ToRecords(s, turns)
	if err := o.writer.WriteBatch(ctx, records); err != nil {
		o.logger.Warn("durable write failed, turns stay buffered",
			zap.String("session_id", s.SessionID),
			zap.Int("records", len(records)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := o.buffer.Trim(ctx, s.SessionID, read); err != nil {
		// The batch is durable but still buffered; it will be written again.
		return nil, fmt.Errorf("%w: trim: %w", ErrCache, err)
	}

	o.logger.Info("flushed session",
		zap.String("session_id", s.SessionID),
		zap.Int("records", len(records)),
	)
	return &FlushResult{Records: records}, nil
}

func (o *Orchestrator) lock(ctx context.Context, sessionID string) (func(), error) {
	if o.config.Locker == nil {
		return func() {}, nil
	}

	lockCtx := ctx
	if o.config.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, o.config.LockTimeout)
		defer cancel()
	}

	unlock, err := o.config.Locker.Lock(lockCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock: %w", ErrCache, err)
	}
	return unlock, nil
}

// ToRecords maps buffered turns to flush records. Message_Index is the
// 1-based position within this batch.
func ToRecords(s Session, turns []buffer.Turn) []archive.FlushRecord {
	records := make([]archive.FlushRecord, len(turns))
	for i, t := range turns {
		records[i] = archive.FlushRecord{
			ChatSessionID:     s.SessionID,
			AssistantID:       s.AssistantID,
			UserMessage:       t.User,
			AssistantResponse: t.Bot,
			TenantID:          s.Tenant(),
			MessageIndex:      i + 1,
			Source:            archive.Source,
			Timestamp:         t.Timestamp,
		}
	}
	return records
}
