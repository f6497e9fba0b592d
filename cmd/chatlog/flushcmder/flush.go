package flushcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatlog/cmd/chatlog/stack"
	"github.com/papercomputeco/chatlog/pkg/logger"
	"github.com/papercomputeco/chatlog/pkg/orchestrator"
)

const flushLongDesc string = `Flush buffered turns of one or more sessions to durable storage.

Reads every buffered turn of each session, clears the buffer and writes the
turns as one batch, exactly as a flush triggered by a chat request would.
Use it to drain sessions that ended before reaching the flush threshold.

Examples:
  chatlog flush s1
  chatlog flush --assistant a1 --tenant acme s1 s2`

const flushShortDesc string = "Flush session buffers to durable storage"

type flushCommander struct {
	flags       stack.Flags
	assistantID string
	tenantID    string
}

func NewFlushCmd() *cobra.Command {
	cmder := &flushCommander{}

	cmd := &cobra.Command{
		Use:   "flush <session-id>...",
		Short: flushShortDesc,
		Long:  flushLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVarP(&cmder.assistantID, "assistant", "a", "", "Assistant id for the records (default GOALSETTER_ASSISTANT_ID)")
	cmd.Flags().StringVarP(&cmder.tenantID, "tenant", "t", "", "Tenant id for the records")

	return cmd
}

func (c *flushCommander) run(ctx context.Context, cmd *cobra.Command, sessions []string) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync() //nolint:errcheck

	s, err := stack.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	assistantID := c.assistantID
	if assistantID == "" {
		assistantID = cfg.DefaultAssistantID
	}

	return flushSessions(ctx, cmd, s.Orchestrator, assistantID, c.tenantID, sessions)
}

func flushSessions(ctx context.Context, cmd *cobra.Command, orch *orchestrator.Orchestrator, assistantID, tenantID string, sessions []string) error {
	var total int
	for _, id := range sessions {
		result, err := orch.Flush(ctx, orchestrator.Session{
			AssistantID: assistantID,
			TenantID:    tenantID,
			SessionID:   id,
		})
		if err != nil {
			return fmt.Errorf("flush of session %s failed: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Flushed %d turns from session %s\n", len(result.Records), id)
		total += len(result.Records)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Flushed %d turns from %d sessions\n", total, len(sessions))
	return nil
}
