package pushcmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatlog/cmd/chatlog/stack"
	"github.com/papercomputeco/chatlog/pkg/archive"
	"github.com/papercomputeco/chatlog/pkg/logger"
)

const pushLongDesc string = `Push records from a local SQLite store to Airtable.

Reads the flush records kept in the local SQLite database and inserts them
into the configured Airtable table. Airtable accepts at most 10 records per
request, so records are sent in batches. Records keep their original
Message_Index.

Examples:
  chatlog push --sqlite ./chatlog.db
  chatlog push --sqlite ./chatlog.db s1 s2`

const pushShortDesc string = "Push local SQLite records to Airtable"

type pushCommander struct {
	flags      stack.Flags
	sqlitePath string
	batchSize  int
}

func NewPushCmd() *cobra.Command {
	cmder := &pushCommander{}

	cmd := &cobra.Command{
		Use:   "push [session-id...]",
		Short: pushShortDesc,
		Long:  pushLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to local SQLite database (default SQLITE_PATH)")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", archive.AirtableMaxRecords, "Records per Airtable request")

	return cmd
}

func (c *pushCommander) run(ctx context.Context, cmd *cobra.Command, sessions []string) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	dbPath := c.sqlitePath
	if dbPath == "" {
		dbPath = cfg.SQLitePath
	}
	if dbPath == "" {
		return errors.New("no local database: pass --sqlite or set SQLITE_PATH")
	}
	if cfg.AirtableBaseID == "" {
		return errors.New("no remote table: set AIRTABLE_BASE_ID")
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync() //nolint:errcheck

	local, err := archive.NewSQLite(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("could not open local database %s: %w", dbPath, err)
	}
	defer local.Close()

	remote := stack.NewAirtable(cfg, log)
	defer remote.Close()

	if len(sessions) == 0 {
		sessions = []string{""}
	}

	var records []archive.FlushRecord
	for _, id := range sessions {
		rs, err := local.Records(ctx, id)
		if err != nil {
			return fmt.Errorf("could not list local records: %w", err)
		}
		records = append(records, rs...)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No local records to push.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushing %d records from %s to Airtable\n", len(records), dbPath)

	pushed, err := pushBatches(ctx, remote, records, c.batchSize)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d records\n", pushed)
	return nil
}

func pushBatches(ctx context.Context, w archive.Writer, records []archive.FlushRecord, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("invalid batch size %d", batchSize)
	}

	var pushed int
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		if err := w.WriteBatch(ctx, records[i:end]); err != nil {
			return pushed, fmt.Errorf("push failed on records %d-%d: %w", i, end-1, err)
		}
		pushed += end - i
	}
	return pushed, nil
}
