// Package ports defines the persistence contract every bill backend adapter
// satisfies, plus the connection state and errors shared by adapters.
package ports

import (
	"context"
	"errors"
	"fmt"

	"billtrack/internal/core"
)

// Backend keys. The set is closed; see backend.ParseKind for unknown keys.
const (
	KindSheets   Kind = "google-sheets"
	KindAirtable Kind = "airtable"
)

const (
	Disconnected State = iota
	Connected
)

var (
	// ErrNotConnected is returned by mutating operations on a disconnected adapter.
	ErrNotConnected = errors.New("not connected")
	// ErrBillNotFound is returned when an update targets an unknown id.
	ErrBillNotFound = errors.New("bill not found")
)

type (
	// Kind selects a backend adapter.
	Kind string

	// State of one adapter instance. Connected is terminal.
	State int

	// ConnectionConfig carries the backend specific settings supplied by the
	// user. SheetID is used by the spreadsheet backend, APIKey and BaseID by
	// the tabular cloud backend. It is never persisted.
	ConnectionConfig struct {
		SheetID string `json:"sheetId,omitempty"`
		APIKey  string `json:"apiKey,omitempty"`
		BaseID  string `json:"baseId,omitempty"`
	}

	// Adapter is the capability set of a bill backend.
	//
	// Connect and GetAllBills never fail: problems are reported to the
	// user through notices and degrade to false / an empty slice. The
	// mutating operations fail with ErrNotConnected until Connect succeeds.
	Adapter interface {
		Kind() Kind
		State() State
		Connect(ctx context.Context, cfg ConnectionConfig) bool
		GetAllBills(ctx context.Context) []core.Bill
		AddBill(ctx context.Context, d core.Draft) (core.Bill, error)
		UpdateBill(ctx context.Context, id string, p core.Patch) (core.Bill, error)
		DeleteBill(ctx context.Context, id string) (bool, error)
		ExportBills(ctx context.Context, bills []core.Bill) (bool, error)
	}
)

func (k Kind) String() string {
	return string(k)
}

// DisplayName is the human name used in notices.
func (k Kind) DisplayName() string {
	switch k {
	case KindSheets:
		return "Google Sheets"
	case KindAirtable:
		return "Airtable"
	default:
		return string(k)
	}
}

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// NotConnected wraps ErrNotConnected with the backend name.
func NotConnected(k Kind) error {
	return fmt.Errorf("%w to %s", ErrNotConnected, k.DisplayName())
}
