package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
)

// Header is the first row of a bill sheet; one bill per following row.
var Header = []any{"id", "name", "amount", "dueDate", "category", "status", "description", "createdAt", "updatedAt"}

const (
	colID = iota
	colName
	colAmount
	colDueDate
	colCategory
	colStatus
	colDescription
	colCreatedAt
	colUpdatedAt
	numCols
)

// lastCol is the column letter of the final header cell.
const lastCol = "I"

// EncodeRow renders b as sheet cells. Everything is written as text so the
// sheet does not reinterpret amounts or dates.
func EncodeRow(b core.Bill) []any {
	return []any{
		b.ID,
		b.Name,
		b.Amount.String(),
		b.DueDate.String(),
		string(b.Category),
		string(b.Status),
		b.Description,
		b.CreatedAt.UTC().Format(time.RFC3339Nano),
		b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// DecodeRow parses one sheet row. Trailing empty cells may be missing, as
// the Sheets API omits them.
func DecodeRow(row []any) (core.Bill, error) {
	cols := toStrings(row)
	for len(cols) < numCols {
		cols = append(cols, "")
	}
	if cols[colID] == "" {
		return core.Bill{}, fmt.Errorf("row without id")
	}
	amount, err := decimal.NewFromString(cols[colAmount])
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: amount %q: %w", cols[colID], cols[colAmount], err)
	}
	due, err := core.ParseDate(cols[colDueDate])
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: %w", cols[colID], err)
	}
	created, err := time.Parse(time.RFC3339Nano, cols[colCreatedAt])
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: createdAt: %w", cols[colID], err)
	}
	updated, err := time.Parse(time.RFC3339Nano, cols[colUpdatedAt])
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: updatedAt: %w", cols[colID], err)
	}
	return core.Bill{
		ID:          cols[colID],
		Name:        cols[colName],
		Amount:      amount,
		DueDate:     due,
		Category:    core.Category(cols[colCategory]),
		Status:      core.Status(cols[colStatus]),
		Description: cols[colDescription],
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

// isHeader reports whether row looks like Header.
func isHeader(row []any) bool {
	cols := toStrings(row)
	return len(cols) > 0 && strings.EqualFold(cols[0], "id")
}

func rowID(row []any) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[0]))
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
