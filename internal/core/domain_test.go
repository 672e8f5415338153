package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validDraft() Draft {
	return Draft{
		Name:     "Water Bill",
		Amount:   decimal.NewFromInt(450),
		DueDate:  NewDate(2024, 1, 22),
		Category: CategoryWater,
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-20", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"20/01/2024", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && (err != nil || d.String() != tc.in) {
			t.Fatalf("%q expected ok, got %v (err=%v)", tc.in, d, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDraftValidate(t *testing.T) {
	if err := validDraft().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Draft)
		want   error
	}{
		{"blank name", func(d *Draft) { d.Name = "  " }, ErrEmptyName},
		{"zero amount", func(d *Draft) { d.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(d *Draft) { d.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"zero date", func(d *Draft) { d.DueDate = Date{} }, ErrInvalidDate},
		{"unknown category", func(d *Draft) { d.Category = "groceries" }, ErrUnknownCategory},
		{"bad status", func(d *Draft) { d.Status = "late" }, ErrInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			if err := d.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewBillDefaultsToPending(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	b := validDraft().NewBill("b1", now)
	if b.Status != StatusPending {
		t.Fatalf("expected pending, got %q", b.Status)
	}
	if !b.CreatedAt.Equal(b.UpdatedAt) {
		t.Fatalf("createdAt %v != updatedAt %v", b.CreatedAt, b.UpdatedAt)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("new bill invalid: %v", err)
	}
}

func TestPatchApplyPreservesAbsentFields(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	b := validDraft().NewBill("b1", created)
	b.Description = "monthly supply"

	paid := StatusPaid
	got, err := Patch{Status: &paid}.Apply(b, created.Add(time.Hour))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != StatusPaid {
		t.Fatalf("status not applied: %q", got.Status)
	}
	if got.Name != b.Name || !got.Amount.Equal(b.Amount) || got.DueDate != b.DueDate ||
		got.Category != b.Category || got.Description != b.Description || got.ID != b.ID ||
		!got.CreatedAt.Equal(b.CreatedAt) {
		t.Fatalf("absent fields changed: before=%+v after=%+v", b, got)
	}
	if !got.UpdatedAt.After(b.UpdatedAt) {
		t.Fatalf("updatedAt not refreshed: %v", got.UpdatedAt)
	}
}

func TestPatchApplyStrictlyLaterWithFrozenClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	b := validDraft().NewBill("b1", now)
	name := "Water"
	got, err := Patch{Name: &name}.Apply(b, now)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !got.UpdatedAt.After(b.UpdatedAt) {
		t.Fatalf("expected strictly later updatedAt, got %v", got.UpdatedAt)
	}
}

func TestPatchApplyRejectsInvalidMerge(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	b := validDraft().NewBill("b1", now)
	zero := decimal.Zero
	got, err := Patch{Amount: &zero}.Apply(b, now.Add(time.Second))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if !got.Amount.Equal(b.Amount) {
		t.Fatalf("prior state not retained: %v", got.Amount)
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, 2, 5)
	b, err := d.MarshalJSON()
	if err != nil || string(b) != `"2024-02-05"` {
		t.Fatalf("marshal: %s err=%v", b, err)
	}
	var back Date
	if err := back.UnmarshalJSON(b); err != nil || back != d {
		t.Fatalf("unmarshal: %v err=%v", back, err)
	}
}

func TestFormDraft(t *testing.T) {
	f := Form{Name: "Electricity Bill", Amount: "1,250.00", DueDate: "2024-01-20", Category: "electricity"}
	d, err := f.Draft()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !d.Amount.Equal(decimal.NewFromInt(1250)) || d.DueDate != NewDate(2024, 1, 20) {
		t.Fatalf("unexpected draft: %+v", d)
	}

	bad := []Form{
		{Amount: "10", DueDate: "2024-01-20", Category: "water"},
		{Name: "x", Amount: "0", DueDate: "2024-01-20", Category: "water"},
		{Name: "x", Amount: "10", DueDate: "20/01/2024", Category: "water"},
		{Name: "x", Amount: "10", DueDate: "2024-01-20", Category: "groceries"},
		{Name: "x", Amount: "10", DueDate: "2024-01-20"},
	}
	for i, f := range bad {
		if _, err := f.Draft(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
