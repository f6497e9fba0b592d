// Package archive writes flushed conversation turns to durable tabular storage.
package archive

import "context"

// Source is the provenance tag stamped on every record.
const Source = "chatbase"

// UnknownTenant is recorded when a request carries no tenant id.
const UnknownTenant = "unknown"

// FlushRecord is the denormalized row written for one flushed turn. The JSON
// field names are the destination table's column names.
type FlushRecord struct {
	ChatSessionID     string `json:"Chat_Session_ID"`
	AssistantID       string `json:"Assistant_ID"`
	UserMessage       string `json:"User_Message"`
	AssistantResponse string `json:"Assistant_Response"`
	TenantID          string `json:"Tenant_ID"`
	MessageIndex      int    `json:"Message_Index"`
	Source            string `json:"Source"`

	// Timestamp is when the turn was buffered. Only local stores keep it.
	Timestamp string `json:"-"`
}

// Writer persists batches of flush records.
type Writer interface {
	// WriteBatch stores all records in a single call. A partial failure is
	// reported as a failure of the whole batch. An empty batch always
	// succeeds; a store that rejects empty inserts, such as Airtable, treats
	// it as a no-op and makes no call.
	WriteBatch(ctx context.Context, records []FlushRecord) error

	// Close releases the writer's resources.
	Close() error
}
