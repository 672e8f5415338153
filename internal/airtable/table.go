package airtable

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
)

// MaxBatch is the most records one write request may carry.
const MaxBatch = 10

type (
	// Table is one table of a base, addressed by opaque record ids.
	Table interface {
		List(ctx context.Context) ([]Record, error)
		Create(ctx context.Context, fields []Fields) ([]Record, error)
		Update(ctx context.Context, recordID string, fields Fields) (Record, error)
		Delete(ctx context.Context, recordIDs []string) error
	}

	// Dialer opens the bill table of a base with an api key.
	Dialer func(ctx context.Context, baseID, apiKey string) (Table, error)

	Record struct {
		ID          string `json:"id,omitempty"`
		CreatedTime string `json:"createdTime,omitempty"`
		Fields      Fields `json:"fields"`
	}

	// Fields are named after the bill JSON keys.
	Fields struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Amount      Number `json:"amount"`
		DueDate     string `json:"dueDate"`
		Category    string `json:"category"`
		Status      string `json:"status"`
		Description string `json:"description,omitempty"`
		CreatedAt   string `json:"createdAt"`
		UpdatedAt   string `json:"updatedAt"`
	}

	// Number is a decimal that travels as a bare JSON number.
	Number struct {
		decimal.Decimal
	}
)

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

func FieldsOf(b core.Bill) Fields {
	return Fields{
		ID:          b.ID,
		Name:        b.Name,
		Amount:      Number{b.Amount},
		DueDate:     b.DueDate.String(),
		Category:    string(b.Category),
		Status:      string(b.Status),
		Description: b.Description,
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Bill decodes the fields of one record.
func (f Fields) Bill() (core.Bill, error) {
	if f.ID == "" {
		return core.Bill{}, fmt.Errorf("record without bill id")
	}
	due, err := core.ParseDate(f.DueDate)
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: %w", f.ID, err)
	}
	created, err := time.Parse(time.RFC3339Nano, f.CreatedAt)
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: createdAt: %w", f.ID, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, f.UpdatedAt)
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: updatedAt: %w", f.ID, err)
	}
	return core.Bill{
		ID:          f.ID,
		Name:        f.Name,
		Amount:      f.Amount.Decimal,
		DueDate:     due,
		Category:    core.Category(f.Category),
		Status:      core.Status(f.Status),
		Description: f.Description,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

// chunks splits n items into batches of at most size.
func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
