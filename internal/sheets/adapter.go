// Package sheets implements the spreadsheet bill backend: one bill per row of
// a "Bills" sheet, reached through a Values collaborator.
package sheets

import (
	"context"
	"errors"
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

// DefaultSheetName is the sheet holding the bills.
const DefaultSheetName = "Bills"

type Adapter struct {
	dial      Dialer
	sheetName string
	notifier  notify.Notifier
	logger    *log.Logger
	now       func() time.Time
	newID     func() string

	mu            sync.Mutex
	state         ports.State
	spreadsheetID string
	values        Values
}

// Ensure interface conformance
var _ ports.Adapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithSheetName overrides the sheet holding the bills.
func WithSheetName(name string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(name) != "" {
			a.sheetName = strings.TrimSpace(name)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithIDs replaces the id generator.
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
		dial:      dial,
		sheetName: DefaultSheetName,
		notifier:  notifier,
		logger:    logger.WithComponent(log.ComponentSheets),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Kind() ports.Kind { return ports.KindSheets }

func (a *Adapter) State() ports.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connect opens the spreadsheet and makes sure the bill sheet has a header.
// A second call on a connected adapter keeps the existing session.
func (a *Adapter) Connect(ctx context.Context, cfg ports.ConnectionConfig) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == ports.Connected {
		return true
	}
	id := strings.TrimSpace(cfg.SheetID)
	if id == "" {
		a.notifier.Error(ctx, "Please enter a Google Sheet ID")
		return false
	}
	if a.dial == nil {
		a.notifier.Error(ctx, "Failed to connect to Google Sheets")
		a.logger.ErrorContext(ctx, "No spreadsheet dialer configured")
		return false
	}

	values, err := a.dial(ctx, id)
	if err == nil {
		err = a.ensureHeader(ctx, values)
	}
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to connect to spreadsheet",
			log.FieldOperation, log.OpConnect,
			log.FieldError, err)
		a.notifier.Error(ctx, "Failed to connect to Google Sheets")
		return false
	}

	a.values = values
	a.spreadsheetID = id
	a.state = ports.Connected
	a.logger.InfoContext(ctx, "Connected to spreadsheet", log.FieldOperation, log.OpConnect, "sheet", a.sheetName)
	a.notifier.Success(ctx, "Connected to Google Sheets successfully!")
	return true
}

func (a *Adapter) ensureHeader(ctx context.Context, values Values) error {
	rows, err := values.Get(ctx, a.headerRange())
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		if err := values.Update(ctx, a.headerRange(), [][]any{Header}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		return nil
	}
	if !isHeader(rows[0]) {
		return fmt.Errorf("sheet %s has unexpected header %v", a.sheetName, rows[0])
	}
	return nil
}

// GetAllBills reads every decodable row. Failures degrade to an empty slice.
func (a *Adapter) GetAllBills(ctx context.Context) []core.Bill {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		a.notifier.Error(ctx, "Not connected to Google Sheets")
		return []core.Bill{}
	}
	rows, err := a.values.Get(ctx, a.dataRange())
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to read bills", log.FieldOperation, log.OpList, log.FieldError, err)
		a.notifier.Error(ctx, "Failed to fetch bills from Google Sheets")
		return []core.Bill{}
	}
	return a.decodeRows(ctx, rows)
}

func (a *Adapter) decodeRows(ctx context.Context, rows [][]any) []core.Bill {
	bills := make([]core.Bill, 0, len(rows))
	for i, row := range rows {
		if rowID(row) == "" {
			continue
		}
		b, err := DecodeRow(row)
		if err != nil {
			// Best-effort: a hand-edited row should not hide the others.
			a.logger.WarnContext(ctx, "Skipping malformed row", "row", i+2, log.FieldError, err)
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
		return core.Bill{}, ports.NotConnected(ports.KindSheets)
	}
	if err := d.Validate(); err != nil {
		return core.Bill{}, fmt.Errorf("validation failed: %w", err)
	}

	b := d.NewBill(a.newID(), a.now())
	if err := a.values.Append(ctx, a.dataRange(), [][]any{EncodeRow(b)}); err != nil {
		a.notifier.Error(ctx, "Failed to add bill to Google Sheets")
		return core.Bill{}, fmt.Errorf("append bill: %w", err)
	}

	a.logger.InfoContext(ctx, "Bill appended",
		log.NewFields().WithOperation(log.OpAdd).WithBill(b.ID, b.Name, b.Amount, string(b.Category)).ToSlice()...)
	a.notifier.Success(ctx, "Bill added to Google Sheets successfully!")
	return b, nil
}

func (a *Adapter) UpdateBill(ctx context.Context, id string, p core.Patch) (core.Bill, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		return core.Bill{}, ports.NotConnected(ports.KindSheets)
	}
	rows, err := a.values.Get(ctx, a.dataRange())
	if err != nil {
		a.notifier.Error(ctx, "Failed to update bill in Google Sheets")
		return core.Bill{}, fmt.Errorf("read bills: %w", err)
	}
	idx := indexOf(rows, id)
	if idx < 0 {
		a.notifier.Error(ctx, "Bill not found in Google Sheets")
		return core.Bill{}, fmt.Errorf("%w: %s", ports.ErrBillNotFound, id)
	}
	current, err := DecodeRow(rows[idx])
	if err != nil {
		a.notifier.Error(ctx, "Failed to update bill in Google Sheets")
		return core.Bill{}, fmt.Errorf("decode row: %w", err)
	}
	updated, err := p.Apply(current, a.now())
	if err != nil {
		return core.Bill{}, fmt.Errorf("validation failed: %w", err)
	}

	ref := a.rowRange(idx + 2)
	if err := a.values.Update(ctx, ref, [][]any{EncodeRow(updated)}); err != nil {
		a.notifier.Error(ctx, "Failed to update bill in Google Sheets")
		return core.Bill{}, fmt.Errorf("write row %s: %w", ref, err)
	}

	a.logger.InfoContext(ctx, "Bill updated", log.FieldOperation, log.OpUpdate, log.FieldBillID, id, log.FieldSheetsRef, ref)
	a.notifier.Success(ctx, "Bill updated in Google Sheets successfully!")
	return updated, nil
}

// DeleteBill removes the row and compacts the data range.
func (a *Adapter) DeleteBill(ctx context.Context, id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		return false, ports.NotConnected(ports.KindSheets)
	}
	rows, err := a.values.Get(ctx, a.dataRange())
	if err != nil {
		return a.deleteFailed(ctx, id, err), nil
	}
	idx := indexOf(rows, id)
	if idx < 0 {
		a.notifier.Error(ctx, "Bill not found in Google Sheets")
		return false, nil
	}
	remaining := make([][]any, 0, len(rows)-1)
	remaining = append(remaining, rows[:idx]...)
	remaining = append(remaining, rows[idx+1:]...)
	if err := a.rewrite(ctx, remaining); err != nil {
		return a.deleteFailed(ctx, id, err), nil
	}

	a.logger.InfoContext(ctx, "Bill deleted", log.FieldOperation, log.OpDelete, log.FieldBillID, id)
	a.notifier.Success(ctx, "Bill deleted from Google Sheets successfully!")
	return true, nil
}

func (a *Adapter) deleteFailed(ctx context.Context, id string, err error) bool {
	a.logger.WarnContext(ctx, "Failed to delete bill", log.FieldOperation, log.OpDelete, log.FieldBillID, id, log.FieldError, err)
	a.notifier.Error(ctx, "Failed to delete bill from Google Sheets")
	return false
}

// ExportBills replaces the sheet content with bills.
func (a *Adapter) ExportBills(ctx context.Context, bills []core.Bill) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ports.Connected {
		return false, ports.NotConnected(ports.KindSheets)
	}
	rows := make([][]any, len(bills))
	for i, b := range bills {
		rows[i] = EncodeRow(b)
	}
	if err := a.rewrite(ctx, rows); err != nil {
		a.logger.WarnContext(ctx, "Failed to export bills", log.FieldOperation, log.OpExport, log.FieldError, err)
		a.notifier.Error(ctx, "Failed to export bills to Google Sheets")
		return false, nil
	}

	a.logger.InfoContext(ctx, "Bills exported", log.FieldOperation, log.OpExport, log.FieldCount, len(bills))
	a.notifier.Success(ctx, fmt.Sprintf("Exported %d bills to Google Sheets!", len(bills)))
	return true, nil
}

// rewrite writes rows over the top of the data range and then clears the
// rows left below them. A failed write leaves the previous rows in place.
func (a *Adapter) rewrite(ctx context.Context, rows [][]any) error {
	if len(rows) > 0 {
		rng := fmt.Sprintf("%s!A2:%s%d", a.sheetName, lastCol, len(rows)+1)
		if err := a.values.Update(ctx, rng, rows); err != nil {
			return fmt.Errorf("write %s: %w", rng, err)
		}
	}
	tail := fmt.Sprintf("%s!A%d:%s", a.sheetName, len(rows)+2, lastCol)
	if err := a.values.Clear(ctx, tail); err != nil {
		return fmt.Errorf("clear %s: %w", tail, err)
	}
	return nil
}

func (a *Adapter) headerRange() string {
	return fmt.Sprintf("%s!A1:%s1", a.sheetName, lastCol)
}

func (a *Adapter) dataRange() string {
	return fmt.Sprintf("%s!A2:%s", a.sheetName, lastCol)
}

func (a *Adapter) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", a.sheetName, row, lastCol, row)
}

func indexOf(rows [][]any, id string) int {
	for i, row := range rows {
		if rowID(row) == id {
			return i
		}
	}
	return -1
}

// IsNotConnected reports whether err came from a disconnected adapter.
func IsNotConnected(err error) bool {
	return errors.Is(err, ports.ErrNotConnected)
}
