// Package backend selects and builds bill backend adapters by key.
package backend

import (
	"billtrack/internal/ports"
)

// Constructor builds a fresh, disconnected adapter.
type Constructor func() ports.Adapter

// Factory creates adapters by backend key.
type Factory interface {
	// New returns a new adapter for key. Unknown keys yield the default backend.
	New(key string) ports.Adapter
}

// ParseKind maps a backend key to a Kind. Unknown keys select google-sheets.
func ParseKind(key string) ports.Kind {
	switch ports.Kind(key) {
	case ports.KindAirtable:
		return ports.KindAirtable
	default:
		return ports.KindSheets
	}
}

// Kinds returns every backend in display order.
func Kinds() []ports.Kind {
	return []ports.Kind{ports.KindSheets, ports.KindAirtable}
}

// KindStrings returns every backend key.
func KindStrings() []string {
	kinds := Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
