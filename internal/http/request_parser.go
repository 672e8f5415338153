// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding and sanitising request bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"billtrack/internal/core"
	"billtrack/internal/ports"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes = 64 << 10

var ErrEmptyBody = errors.New("empty request body")

// ConnectRequest is the body of POST /api/connect.
type ConnectRequest struct {
	Backend string `json:"backend"`
	ports.ConnectionConfig
}

// ParseRequest is the body of POST /api/parse. Draft, when present, is the
// form the extracted fields are merged into.
type ParseRequest struct {
	Text  string     `json:"text"`
	Draft *core.Form `json:"draft,omitempty"`
}

// DecodeJSON reads one JSON object from r into dst. Unknown fields and
// trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: trailing data after object")
	}
	return nil
}

// SanitizeForm cleans every free-text field of f.
func SanitizeForm(f core.Form) core.Form {
	return core.Form{
		Name:        sanitizeInput(f.Name),
		Amount:      sanitizeInput(f.Amount),
		DueDate:     sanitizeInput(f.DueDate),
		Category:    sanitizeInput(f.Category),
		Description: sanitizeInput(f.Description),
	}
}

// SanitizePatch cleans the free-text fields a patch carries.
func SanitizePatch(p core.Patch) core.Patch {
	if p.Name != nil {
		name := sanitizeInput(*p.Name)
		p.Name = &name
	}
	if p.Description != nil {
		desc := sanitizeInput(*p.Description)
		p.Description = &desc
	}
	return p
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
