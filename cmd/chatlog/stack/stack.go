// Package stack assembles the relay's collaborators from configuration.
package stack

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatlog/pkg/archive"
	"github.com/papercomputeco/chatlog/pkg/buffer"
	"github.com/papercomputeco/chatlog/pkg/config"
	"github.com/papercomputeco/chatlog/pkg/orchestrator"
	"github.com/papercomputeco/chatlog/pkg/relay"
)

// Stack holds the assembled collaborators and closes them together.
type Stack struct {
	Orchestrator *orchestrator.Orchestrator
	Buffer       buffer.Buffer
	Writer       archive.Writer
}

// Build connects the buffer, opens the durable writer and creates the
// orchestrator described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stack, error) {
	buf, locker, err := NewBuffer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	writer, err := NewWriter(ctx, cfg, logger)
	if err != nil {
		buf.Close()
		return nil, err
	}

	client := relay.NewChatbase(relay.ChatbaseConfig{
		URL:     cfg.ChatbaseURL,
		APIKey:  cfg.ChatbaseAPIKey,
		Timeout: cfg.RequestTimeout.Duration,
	}, logger)

	orchConfig := OrchestratorConfig(cfg, writer, locker)

	logger.Info("chatlog stack ready",
		zap.Bool("session_lock", cfg.SessionLock),
		zap.Bool("clear_after_write", cfg.ClearAfterWrite),
		zap.Bool("chatbase_api_key_set", cfg.ChatbaseAPIKey != ""),
	)

	return &Stack{
		Orchestrator: orchestrator.New(orchConfig, client, buf, writer, logger),
		Buffer:       buf,
		Writer:       writer,
	}, nil
}

// OrchestratorConfig derives the orchestrator settings from cfg. Retained
// backlogs are flushed in slices the writer can accept in one call.
func OrchestratorConfig(cfg *config.Config, writer archive.Writer, locker buffer.Locker) orchestrator.Config {
	orchConfig := orchestrator.Config{
		LockTimeout:     cfg.LockTTL.Duration,
		ClearAfterWrite: cfg.ClearAfterWrite,
	}
	if cfg.SessionLock {
		orchConfig.Locker = locker
	}
	if _, ok := writer.(*archive.Airtable); ok {
		orchConfig.MaxBatch = archive.AirtableMaxRecords
	}
	return orchConfig
}

// NewBuffer selects Redis when a URL is configured, otherwise an in-process buffer.
func NewBuffer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (buffer.Buffer, buffer.Locker, error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, buffering turns in memory")
		b := buffer.NewMemoryBuffer()
		return b, b, nil
	}

	b, err := buffer.NewRedisBuffer(ctx, cfg.RedisURL, cfg.LockTTL.Duration, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis: %w", err)
	}
	logger.Info("using redis buffer")
	return b, b, nil
}

// NewWriter selects Airtable when a base id is configured, otherwise SQLite.
func NewWriter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (archive.Writer, error) {
	switch {
	case cfg.AirtableBaseID != "":
		logger.Info("using airtable durable store",
			zap.String("base_id", cfg.AirtableBaseID),
			zap.String("table", cfg.AirtableTableName),
		)
		return NewAirtable(cfg, logger), nil
	case cfg.SQLitePath != "":
		w, err := archive.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("could not open sqlite store %s: %w", cfg.SQLitePath, err)
		}
		logger.Info("using sqlite durable store", zap.String("path", cfg.SQLitePath))
		return w, nil
	default:
		return nil, errors.New("no durable store configured")
	}
}

// NewAirtable builds the Airtable writer from cfg.
func NewAirtable(cfg *config.Config, logger *zap.Logger) *archive.Airtable {
	return archive.NewAirtable(archive.AirtableConfig{
		URL:       cfg.AirtableURL,
		APIKey:    cfg.AirtableAPIKey,
		BaseID:    cfg.AirtableBaseID,
		TableName: cfg.AirtableTableName,
		Timeout:   cfg.RequestTimeout.Duration,
	}, logger)
}

// Close releases the buffer and the writer.
func (s *Stack) Close() error {
	return errors.Join(s.Buffer.Close(), s.Writer.Close())
}
