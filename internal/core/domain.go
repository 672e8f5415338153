package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

const dateLayout = "2006-01-02"

type (
	Status string

	// Date is a calendar day. Only year, month and day are meaningful.
	Date struct {
		time.Time
	}

	Bill struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		DueDate     Date            `json:"dueDate"`
		Category    Category        `json:"category"`
		Status      Status          `json:"status"`
		Description string          `json:"description,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	// Draft is a bill that has not been persisted yet: no id, no timestamps.
	Draft struct {
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		DueDate     Date            `json:"dueDate"`
		Category    Category        `json:"category"`
		Status      Status          `json:"status,omitempty"`
		Description string          `json:"description,omitempty"`
	}

	// Patch is a partial update. Nil fields are left untouched.
	Patch struct {
		Name        *string          `json:"name,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		DueDate     *Date            `json:"dueDate,omitempty"`
		Category    *Category        `json:"category,omitempty"`
		Status      *Status          `json:"status,omitempty"`
		Description *string          `json:"description,omitempty"`
	}
)

var (
	ErrEmptyName       = errors.New("empty bill name")
	ErrNameTooLong     = errors.New("bill name too long (max 200 characters)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid due date")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidStatus   = errors.New("invalid status")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Out of range days are rejected
// rather than normalised into the next month.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Before reports whether d is an earlier day than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// DaysUntil returns the number of whole days from d to o (negative when o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue:
		return true
	default:
		return false
	}
}

func (d Draft) Validate() error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	if err := ValidateAmount(d.Amount); err != nil {
		return err
	}
	if err := d.DueDate.Validate(); err != nil {
		return err
	}
	if !d.Category.IsKnown() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, d.Category)
	}
	if d.Status != "" && !d.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	return nil
}

// NewBill turns a validated draft into a bill with the given id and creation time.
// An empty draft status becomes pending.
func (d Draft) NewBill(id string, now time.Time) Bill {
	status := d.Status
	if status == "" {
		status = StatusPending
	}
	return Bill{
		ID:          id,
		Name:        strings.TrimSpace(d.Name),
		Amount:      d.Amount,
		DueDate:     d.DueDate,
		Category:    d.Category,
		Status:      status,
		Description: strings.TrimSpace(d.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Draft returns the mutable fields of b.
func (b Bill) Draft() Draft {
	return Draft{
		Name:        b.Name,
		Amount:      b.Amount,
		DueDate:     b.DueDate,
		Category:    b.Category,
		Status:      b.Status,
		Description: b.Description,
	}
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("empty bill id")
	}
	if err := b.Draft().Validate(); err != nil {
		return err
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, b.Status)
	}
	if b.UpdatedAt.Before(b.CreatedAt) {
		return errors.New("updatedAt before createdAt")
	}
	return nil
}

// IsEmpty reports whether the patch carries no field at all.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Amount == nil && p.DueDate == nil &&
		p.Category == nil && p.Status == nil && p.Description == nil
}

// Apply merges p into b and validates the result. UpdatedAt is set to now,
// or nudged just past the previous value when the clock has not moved.
func (p Patch) Apply(b Bill, now time.Time) (Bill, error) {
	out := b
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.DueDate != nil {
		out.DueDate = *p.DueDate
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Description != nil {
		out.Description = strings.TrimSpace(*p.Description)
	}
	if err := out.Draft().Validate(); err != nil {
		return b, err
	}
	if !out.Status.IsValid() {
		return b, fmt.Errorf("%w: %q", ErrInvalidStatus, out.Status)
	}
	out.UpdatedAt = Later(b.UpdatedAt, now)
	return out, nil
}

// Later returns now if it is strictly after prev, otherwise prev plus one microsecond.
func Later(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

// StatusPatch is shorthand for a patch that only changes the status.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}
