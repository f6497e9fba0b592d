package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAirtableURL is the Airtable REST API root.
const DefaultAirtableURL = "https://api.airtable.com/v0"

// AirtableMaxRecords is the most records Airtable accepts in one create call.
const AirtableMaxRecords = 10

// AirtableConfig configures the Airtable writer.
type AirtableConfig struct {
	// URL is the API root. Empty means DefaultAirtableURL.
	URL string

	APIKey    string
	BaseID    string
	TableName string

	// Timeout bounds a single bulk insert.
	Timeout time.Duration
}

// Airtable is a Writer that bulk-inserts records into an Airtable table.
type Airtable struct {
	config     AirtableConfig
	endpoint   string
	logger     *zap.Logger
	httpClient *http.Client
}

type airtableRecord struct {
	Fields FlushRecord `json:"fields"`
}

type airtablePayload struct {
	Records []airtableRecord `json:"records"`
}

// NewAirtable creates an Airtable writer.
func NewAirtable(config AirtableConfig, logger *zap.Logger) *Airtable {
	if config.URL == "" {
		config.URL = DefaultAirtableURL
	}

	endpoint := strings.TrimRight(config.URL, "/") + "/" + config.BaseID + "/" + url.PathEscape(config.TableName)

	return &Airtable{
		config:   config,
		endpoint: endpoint,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// WriteBatch posts all records in one request. An empty batch makes no call,
// since the API rejects inserts without records.
func (a *Airtable) WriteBatch(ctx context.Context, records []FlushRecord) error {
	if len(records) == 0 {
		a.logger.Debug("skipping airtable insert for empty batch")
		return nil
	}

	payload := airtablePayload{Records: make([]airtableRecord, len(records))}
	for i, r := range records {
		payload.Records[i] = airtableRecord{Fields: r}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	a.logger.Debug("writing batch to airtable",
		zap.String("table", a.config.TableName),
		zap.Int("records", len(records)),
	)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return fmt.Errorf("airtable returned %d: %s", httpResp.StatusCode, string(respBody))
	}

	_, _ = io.Copy(io.Discard, httpResp.Body)
	return nil
}

// Close implements Writer.
func (a *Airtable) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}
