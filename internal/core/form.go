package core

import (
	"fmt"
	"strings"
)

// Form is the user-entry shape of a bill: every field is the raw string the
// user typed or the parser extracted. Draft converts it to a validated Draft.
type Form struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	DueDate     string `json:"dueDate"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// Draft validates the form and converts it. The first problem found is returned.
func (f Form) Draft() (Draft, error) {
	if strings.TrimSpace(f.Name) == "" {
		return Draft{}, ErrEmptyName
	}
	amount, err := ParseAmount(f.Amount)
	if err != nil {
		return Draft{}, fmt.Errorf("amount %q: %w", f.Amount, err)
	}
	due, err := ParseDate(f.DueDate)
	if err != nil {
		return Draft{}, err
	}
	d := Draft{
		Name:        f.Name,
		Amount:      amount,
		DueDate:     due,
		Category:    Category(strings.TrimSpace(f.Category)),
		Status:      StatusPending,
		Description: f.Description,
	}
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d, nil
}
