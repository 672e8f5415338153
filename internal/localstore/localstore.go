// Package localstore keeps bills on the device when no backend is connected.
// The whole list lives as one JSON array under a single key.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/ports"
	"billtrack/internal/storage"
)

// Key is the storage key holding the bill list.
const Key = "billtrack.bills"

type Store struct {
	kv     storage.KV
	logger *log.Logger
	now    func() time.Time

	mu sync.Mutex
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(kv storage.KV, logger *log.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Store{kv: kv, logger: logger.WithComponent(log.ComponentStorage), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the stored bills. A missing, unreadable or corrupt list
// yields an empty slice and is logged, never returned as an error.
func (s *Store) Load(ctx context.Context) []core.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	bills, err := s.read(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read local bills", log.FieldOperation, log.OpLoad, log.FieldError, err)
		return []core.Bill{}
	}
	return bills
}

// read returns the stored list. Only a missing key or a corrupt payload
// degrades to empty; a failing KV is returned so writers keep the prior list.
func (s *Store) read(ctx context.Context) ([]core.Bill, error) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("read bills: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []core.Bill{}, nil
	}
	var bills []core.Bill
	if err := json.Unmarshal(raw, &bills); err != nil {
		s.logger.WarnContext(ctx, "Discarding unreadable local bills", log.FieldOperation, log.OpLoad, log.FieldError, err)
		return []core.Bill{}, nil
	}
	if bills == nil {
		bills = []core.Bill{}
	}
	return bills, nil
}

func (s *Store) save(ctx context.Context, bills []core.Bill) error {
	raw, err := json.Marshal(bills)
	if err != nil {
		return fmt.Errorf("encode bills: %w", err)
	}
	if err := s.kv.Set(ctx, Key, raw); err != nil {
		return fmt.Errorf("save bills: %w", err)
	}
	return nil
}

// AppendAndSave validates d, assigns a millisecond timestamp id and writes
// the whole list back in one KV write.
func (s *Store) AppendAndSave(ctx context.Context, d core.Draft) (core.Bill, error) {
	if err := d.Validate(); err != nil {
		return core.Bill{}, fmt.Errorf("validation failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.read(ctx)
	if err != nil {
		return core.Bill{}, err
	}
	now := s.now()
	b := d.NewBill(nextID(bills, now), now)
	bills = append(bills, b)
	if err := s.save(ctx, bills); err != nil {
		return core.Bill{}, err
	}

	s.logger.InfoContext(ctx, "Bill saved locally",
		log.NewFields().WithOperation(log.OpSave).WithBill(b.ID, b.Name, b.Amount, string(b.Category)).ToSlice()...)
	return b, nil
}

// Update applies p to the stored bill with the given id.
func (s *Store) Update(ctx context.Context, id string, p core.Patch) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.read(ctx)
	if err != nil {
		return core.Bill{}, err
	}
	for i := range bills {
		if bills[i].ID != id {
			continue
		}
		updated, err := p.Apply(bills[i], s.now())
		if err != nil {
			return core.Bill{}, fmt.Errorf("validation failed: %w", err)
		}
		bills[i] = updated
		if err := s.save(ctx, bills); err != nil {
			return core.Bill{}, err
		}
		s.logger.InfoContext(ctx, "Bill updated locally", log.FieldOperation, log.OpUpdate, log.FieldBillID, id)
		return updated, nil
	}
	return core.Bill{}, fmt.Errorf("%w: %s", ports.ErrBillNotFound, id)
}

// Delete removes the bill with the given id. It reports false when no bill matched.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]core.Bill, 0, len(bills))
	for _, b := range bills {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(bills) {
		return false, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "Bill deleted locally", log.FieldOperation, log.OpDelete, log.FieldBillID, id)
	return true, nil
}

// nextID is now in Unix milliseconds, bumped past any id already taken.
func nextID(bills []core.Bill, now time.Time) string {
	taken := make(map[string]bool, len(bills))
	for _, b := range bills {
		taken[b.ID] = true
	}
	ms := now.UnixMilli()
	for taken[strconv.FormatInt(ms, 10)] {
		ms++
	}
	return strconv.FormatInt(ms, 10)
}

// Close releases the underlying key-value store.
func (s *Store) Close() error {
	return s.kv.Close()
}
