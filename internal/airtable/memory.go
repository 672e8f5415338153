package airtable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrRecordNotFound is returned by MemoryTable for unknown record ids.
var ErrRecordNotFound = errors.New("record not found")

// MemoryTable simulates a base in process. Every base id shares one table.
type MemoryTable struct {
	mu      sync.Mutex
	records []Record
	seq     int
	latency time.Duration
	failErr error
}

func NewMemoryTable(latency time.Duration) *MemoryTable {
	return &MemoryTable{latency: latency}
}

// Dial satisfies Dialer. Any non-empty credentials are accepted.
func (m *MemoryTable) Dial(ctx context.Context, baseID, apiKey string) (Table, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(baseID) == "" || strings.TrimSpace(apiKey) == "" {
		return nil, &APIError{Status: 401, Type: "AUTHENTICATION_REQUIRED"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	return m, nil
}

// Fail makes every following call return err. Fail(nil) heals the table.
func (m *MemoryTable) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MemoryTable) List(ctx context.Context) ([]Record, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...), nil
}

func (m *MemoryTable) Create(ctx context.Context, fields []Fields) ([]Record, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	out := make([]Record, 0, len(fields))
	for _, f := range fields {
		m.seq++
		rec := Record{
			ID:          fmt.Sprintf("rec%014d", m.seq),
			CreatedTime: time.Now().UTC().Format(time.RFC3339),
			Fields:      f,
		}
		m.records = append(m.records, rec)
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryTable) Update(ctx context.Context, recordID string, fields Fields) (Record, error) {
	if err := m.enter(ctx); err != nil {
		return Record{}, err
	}
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == recordID {
			m.records[i].Fields = fields
			return m.records[i], nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
}

func (m *MemoryTable) Delete(ctx context.Context, recordIDs []string) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()
	drop := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		drop[id] = true
	}
	kept := m.records[:0]
	for _, r := range m.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

// enter waits out the latency and locks the table. The caller unlocks on success.
func (m *MemoryTable) enter(ctx context.Context) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	if m.failErr != nil {
		err := m.failErr
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryTable) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
