package archive

import (
	"context"
	"sync"
)

// Memory is an in-process Writer that keeps every batch it receives.
type Memory struct {
	mu      sync.Mutex
	batches [][]FlushRecord
	err     error
}

// NewMemory creates an empty Memory writer.
func NewMemory() *Memory {
	return &Memory{}
}

// WriteBatch implements Writer.
func (m *Memory) WriteBatch(_ context.Context, records []FlushRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	batch := make([]FlushRecord, len(records))
	copy(batch, records)
	m.batches = append(m.batches, batch)
	return nil
}

// FailWith makes subsequent writes return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Batches returns every batch written so far.
func (m *Memory) Batches() [][]FlushRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]FlushRecord, len(m.batches))
	copy(out, m.batches)
	return out
}

// Close implements Writer.
func (m *Memory) Close() error {
	return nil
}
