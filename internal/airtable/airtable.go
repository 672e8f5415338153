// Package airtable implements the tabular cloud bill backend: one bill per
// record of a table, reached through a Table collaborator.
package airtable

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/notify"
	"billtrack/internal/ports"
)

type Adapter struct {
	dial     Dialer
	notifier notify.Notifier
	logger   *log.Logger
	now      func() time.Time
	newID    func() string

	mu    sync.Mutex
	state ports.State
	table Table
}

var _ ports.Adapter = (*Adapter)(nil)

type Option func(*Adapter)

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func WithIDs(newID func() string) Option {
	return func(a *Adapter) { a.newID = newID }
}

func New(dial Dialer, notifier notify.Notifier, logger *log.Logger, opts ...Option) *Adapter {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	a := &Adapter{
		dial:     dial,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentAirtable),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Kind() ports.Kind { return ports.KindAirtable }

func (a *Adapter) State() ports.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) Connect(ctx context.Context, cfg ports.ConnectionConfig) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == ports.Connected {
		return true
	}
	baseID, apiKey := strings.TrimSpace(cfg.BaseID), strings.TrimSpace(cfg.APIKey)
	if baseID == "" || apiKey == "" {
		a.notifier.Error(ctx, "Please enter both Airtable API Key and Base ID")
		return false
	}
	if a.dial == nil {
		a.notifier.Error(ctx, "Failed to connect to Airtable")
		return false
	}

	table, err := a.dial(ctx, baseID, apiKey)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to connect to base",
			log.FieldOperation, log.OpConnect,
			"auth", IsAuthError(err),
			log.FieldError, err)
		a.notifier.Error(ctx, "Failed to connect to Airtable")
		return false
	}

	a.table = table
	a.state = ports.Connected
	a.logger.InfoContext(ctx, "Connected to base", log.FieldOperation, log.OpConnect, "base_id", baseID)
	a.notifier.Success(ctx, "Connected to Airtable successfully!")
	return true
}

func (a *Adapter) GetAllBills(ctx context.Context) []core.Bill {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		a.notifier.Error(ctx, "Not connected to Airtable")
		return []core.Bill{}
	}
	records, err := a.table.List(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to list records", log.FieldOperation, log.OpList, log.FieldError, err)
		a.notifier.Error(ctx, "Failed to fetch bills from Airtable")
		return []core.Bill{}
	}
	bills := make([]core.Bill, 0, len(records))
	for _, r := range records {
		b, err := r.Fields.Bill()
		if err != nil {
			a.logger.WarnContext(ctx, "Skipping malformed record", "record_id", r.ID, log.FieldError, err)
			continue
		}
		bills = append(bills, b)
	}
	return bills
}

func (a *Adapter) AddBill(ctx context.Context, d core.Draft) (core.Bill, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		return core.Bill{}, ports.NotConnected(ports.KindAirtable)
	}
	if err := d.Validate(); err != nil {
		return core.Bill{}, fmt.Errorf("validation failed: %w", err)
	}

	b := d.NewBill(a.newID(), a.now())
	if _, err := a.table.Create(ctx, []Fields{FieldsOf(b)}); err != nil {
		a.notifier.Error(ctx, "Failed to add bill to Airtable")
		return core.Bill{}, fmt.Errorf("create record: %w", err)
	}
	a.logger.InfoContext(ctx, "Record created",
		log.NewFields().WithOperation(log.OpAdd).WithBill(b.ID, b.Name, b.Amount, string(b.Category)).ToSlice()...)
	a.notifier.Success(ctx, "Bill added to Airtable successfully!")
	return b, nil
}

func (a *Adapter) UpdateBill(ctx context.Context, id string, p core.Patch) (core.Bill, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		return core.Bill{}, ports.NotConnected(ports.KindAirtable)
	}
	rec, found, err := a.find(ctx, id)
	if err != nil {
		a.notifier.Error(ctx, "Failed to update bill in Airtable")
		return core.Bill{}, err
	}
	if !found {
		a.notifier.Error(ctx, "Bill not found in Airtable")
		return core.Bill{}, fmt.Errorf("%w: %s", ports.ErrBillNotFound, id)
	}
	current, err := rec.Fields.Bill()
	if err != nil {
		a.notifier.Error(ctx, "Failed to update bill in Airtable")
		return core.Bill{}, fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	updated, err := p.Apply(current, a.now())
	if err != nil {
		return core.Bill{}, fmt.Errorf("validation failed: %w", err)
	}
	if _, err := a.table.Update(ctx, rec.ID, FieldsOf(updated)); err != nil {
		a.notifier.Error(ctx, "Failed to update bill in Airtable")
		return core.Bill{}, fmt.Errorf("update record %s: %w", rec.ID, err)
	}

	a.logger.InfoContext(ctx, "Record updated", log.FieldOperation, log.OpUpdate, log.FieldBillID, id, "record_id", rec.ID)
	a.notifier.Success(ctx, "Bill updated in Airtable successfully!")
	return updated, nil
}

func (a *Adapter) DeleteBill(ctx context.Context, id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		return false, ports.NotConnected(ports.KindAirtable)
	}
	rec, found, err := a.find(ctx, id)
	if err == nil && !found {
		a.notifier.Error(ctx, "Bill not found in Airtable")
		return false, nil
	}
	if err == nil {
		err = a.table.Delete(ctx, []string{rec.ID})
	}
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to delete record", log.FieldOperation, log.OpDelete, log.FieldBillID, id, log.FieldError, err)
		a.notifier.Error(ctx, "Failed to delete bill from Airtable")
		return false, nil
	}

	a.logger.InfoContext(ctx, "Record deleted", log.FieldOperation, log.OpDelete, log.FieldBillID, id)
	a.notifier.Success(ctx, "Bill deleted from Airtable successfully!")
	return true, nil
}

// ExportBills replaces the table content with bills.
func (a *Adapter) ExportBills(ctx context.Context, bills []core.Bill) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		return false, ports.NotConnected(ports.KindAirtable)
	}
	if err := a.replace(ctx, bills); err != nil {
		a.logger.WarnContext(ctx, "Failed to export bills", log.FieldOperation, log.OpExport, log.FieldError, err)
		a.notifier.Error(ctx, "Failed to export bills to Airtable")
		return false, nil
	}

	a.logger.InfoContext(ctx, "Bills exported", log.FieldOperation, log.OpExport, log.FieldCount, len(bills))
	a.notifier.Success(ctx, fmt.Sprintf("Exported %d bills to Airtable!", len(bills)))
	return true, nil
}

// replace creates the new records before deleting the old ones, so a failed
// export leaves the previous content. Records created by a failed step are
// removed again on a best-effort basis.
func (a *Adapter) replace(ctx context.Context, bills []core.Bill) error {
	existing, err := a.table.List(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	var created []Record
	if len(bills) > 0 {
		fields := make([]Fields, len(bills))
		for i, b := range bills {
			fields[i] = FieldsOf(b)
		}
		created, err = a.table.Create(ctx, fields)
		if err != nil {
			a.rollback(ctx, created)
			return fmt.Errorf("create records: %w", err)
		}
	}
	if len(existing) > 0 {
		if err := a.table.Delete(ctx, recordIDs(existing)); err != nil {
			a.rollback(ctx, created)
			return fmt.Errorf("delete records: %w", err)
		}
	}
	return nil
}

func (a *Adapter) rollback(ctx context.Context, created []Record) {
	if len(created) == 0 {
		return
	}
	if err := a.table.Delete(ctx, recordIDs(created)); err != nil {
		a.logger.ErrorContext(ctx, "Failed to remove records of an aborted export",
			log.FieldOperation, log.OpExport, log.FieldCount, len(created), log.FieldError, err)
	}
}

func recordIDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func (a *Adapter) find(ctx context.Context, billID string) (Record, bool, error) {
	records, err := a.table.List(ctx)
	if err != nil {
		return Record{}, false, fmt.Errorf("list records: %w", err)
	}
	for _, r := range records {
		if r.Fields.ID == billID {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}
