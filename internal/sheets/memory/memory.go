// Package memory simulates a spreadsheet service in process. It serves the
// sheets.Values port over an A1-addressed grid per spreadsheet id.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
	"billtrack/internal/sheets"
)

var ErrBadRange = errors.New("bad range")

// Server holds every simulated spreadsheet.
type Server struct {
	mu      sync.Mutex
	books   map[string]map[string][][]any
	seed    []core.Bill
	latency time.Duration
	failErr error
}

type Option func(*Server)

// WithLatency delays every call by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithSeed fills every newly opened spreadsheet with bills.
func WithSeed(bills []core.Bill) Option {
	return func(s *Server) { s.seed = append([]core.Bill(nil), bills...) }
}

func NewServer(opts ...Option) *Server {
	s := &Server{books: map[string]map[string][][]any{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial satisfies sheets.Dialer. Unknown ids are created on first use.
func (s *Server) Dial(ctx context.Context, spreadsheetID string) (sheets.Values, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	if _, ok := s.books[spreadsheetID]; !ok {
		book := map[string][][]any{}
		if len(s.seed) > 0 {
			rows := [][]any{append([]any(nil), sheets.Header...)}
			for _, b := range s.seed {
				rows = append(rows, sheets.EncodeRow(b))
			}
			book[sheets.DefaultSheetName] = rows
		}
		s.books[spreadsheetID] = book
	}
	return &values{srv: s, id: spreadsheetID}, nil
}

// Fail makes every following call return err. Fail(nil) heals the server.
func (s *Server) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Rows returns a copy of the raw grid of one sheet.
func (s *Server) Rows(spreadsheetID, sheet string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	grid := s.books[spreadsheetID][sheet]
	out := make([][]any, len(grid))
	for i, row := range grid {
		out[i] = append([]any(nil), row...)
	}
	return out
}

func (s *Server) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type values struct {
	srv *Server
	id  string
}

func (v *values) do(ctx context.Context, rng string, fn func(grid *[][]any, r a1) error) error {
	if err := v.srv.wait(ctx); err != nil {
		return err
	}
	r, err := parseA1(rng)
	if err != nil {
		return err
	}
	v.srv.mu.Lock()
	defer v.srv.mu.Unlock()
	if v.srv.failErr != nil {
		return v.srv.failErr
	}
	book := v.srv.books[v.id]
	grid := book[r.sheet]
	if err := fn(&grid, r); err != nil {
		return err
	}
	book[r.sheet] = grid
	return nil
}

func (v *values) Get(ctx context.Context, rng string) ([][]any, error) {
	var out [][]any
	err := v.do(ctx, rng, func(grid *[][]any, r a1) error {
		last := len(*grid) - 1
		if r.endRow >= 0 && r.endRow < last {
			last = r.endRow
		}
		for i := r.startRow; i <= last; i++ {
			out = append(out, cells((*grid)[i], r.startCol, r.endCol))
		}
		for len(out) > 0 && len(out[len(out)-1]) == 0 {
			out = out[:len(out)-1]
		}
		return nil
	})
	return out, err
}

func (v *values) Update(ctx context.Context, rng string, rows [][]any) error {
	return v.do(ctx, rng, func(grid *[][]any, r a1) error {
		write(grid, r.startRow, r.startCol, rows)
		return nil
	})
}

func (v *values) Append(ctx context.Context, rng string, rows [][]any) error {
	return v.do(ctx, rng, func(grid *[][]any, r a1) error {
		at := r.startRow
		for i := len(*grid) - 1; i >= r.startRow; i-- {
			if len(cells((*grid)[i], r.startCol, r.endCol)) > 0 {
				at = i + 1
				break
			}
		}
		write(grid, at, r.startCol, rows)
		return nil
	})
}

func (v *values) Clear(ctx context.Context, rng string) error {
	return v.do(ctx, rng, func(grid *[][]any, r a1) error {
		last := len(*grid) - 1
		if r.endRow >= 0 && r.endRow < last {
			last = r.endRow
		}
		for i := r.startRow; i <= last; i++ {
			row := (*grid)[i]
			for c := r.startCol; c < len(row) && (r.endCol < 0 || c <= r.endCol); c++ {
				row[c] = nil
			}
			(*grid)[i] = trim(row)
		}
		return nil
	})
}

// cells returns the [from, to] slice of row with trailing blanks removed,
// as the real API omits them.
func cells(row []any, from, to int) []any {
	if from >= len(row) {
		return []any{}
	}
	end := len(row)
	if to >= 0 && to+1 < end {
		end = to + 1
	}
	return trim(append([]any(nil), row[from:end]...))
}

func trim(row []any) []any {
	for len(row) > 0 && (row[len(row)-1] == nil || row[len(row)-1] == "") {
		row = row[:len(row)-1]
	}
	return row
}

func write(grid *[][]any, startRow, startCol int, rows [][]any) {
	for i, src := range rows {
		r := startRow + i
		for len(*grid) <= r {
			*grid = append(*grid, nil)
		}
		row := (*grid)[r]
		for len(row) < startCol+len(src) {
			row = append(row, nil)
		}
		for c, cell := range src {
			row[startCol+c] = fmt.Sprint(cell)
		}
		(*grid)[r] = trim(row)
	}
}

// a1 is a parsed, zero-based range. endRow and endCol are -1 when open.
type a1 struct {
	sheet              string
	startRow, startCol int
	endRow, endCol     int
}

func parseA1(rng string) (a1, error) {
	sheet, ref, ok := strings.Cut(rng, "!")
	if !ok || sheet == "" || ref == "" {
		return a1{}, fmt.Errorf("%w: %q", ErrBadRange, rng)
	}
	from, to, hasTo := strings.Cut(ref, ":")
	r := a1{sheet: strings.Trim(sheet, "'"), endRow: -1, endCol: -1}
	var err error
	if r.startCol, r.startRow, err = parseCell(from); err != nil {
		return a1{}, fmt.Errorf("%w: %q", ErrBadRange, rng)
	}
	if r.startRow < 0 {
		r.startRow = 0
	}
	if hasTo {
		if r.endCol, r.endRow, err = parseCell(to); err != nil {
			return a1{}, fmt.Errorf("%w: %q", ErrBadRange, rng)
		}
	}
	return r, nil
}

// parseCell splits "C12" into zero-based column 2 and row 11. A missing row
// yields -1.
func parseCell(s string) (col, row int, err error) {
	i := 0
	col = 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("missing column in %q", s)
	}
	if i == len(s) {
		return col - 1, -1, nil
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("bad row in %q", s)
	}
	return col - 1, n - 1, nil
}

// SampleBills are the demo bills a fresh simulated spreadsheet starts with.
func SampleBills() []core.Bill {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	bill := func(id, name string, amount int64, due string, cat core.Category, status core.Status, desc string) core.Bill {
		d, _ := core.ParseDate(due)
		return core.Bill{
			ID: id, Name: name, Amount: decimal.NewFromInt(amount), DueDate: d,
			Category: cat, Status: status, Description: desc,
			CreatedAt: created, UpdatedAt: created,
		}
	}
	bills := []core.Bill{
		bill("1", "Monthly Electricity Bill", 1250, "2024-01-20", core.CategoryElectricity, core.StatusPending, "BESCOM electricity bill for January"),
		bill("2", "Home Loan EMI", 35000, "2024-01-25", core.CategoryEMI, core.StatusPending, "Monthly home loan installment"),
		bill("3", "Credit Card Payment", 5200, "2024-01-18", core.CategoryCreditCard, core.StatusPending, "HDFC Credit Card bill"),
		bill("4", "Water Bill", 450, "2024-01-22", core.CategoryWater, core.StatusPending, "Monthly water supply bill"),
		bill("5", "Internet Bill", 899, "2024-01-15", core.CategoryInternet, core.StatusPaid, "ACT FiberNet monthly subscription"),
		bill("6", "Phone Bill", 599, "2024-01-28", core.CategoryPhone, core.StatusPending, "Jio postpaid connection"),
	}
	bills[4].UpdatedAt = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	return bills
}
