package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summary is the dashboard view over a collection of bills.
type Summary struct {
	TotalPending decimal.Decimal `json:"totalPending"`
	Display      string          `json:"totalPendingDisplay"`
	NextDue      *Bill           `json:"nextDue,omitempty"`
	Pending      int             `json:"pending"`
	Paid         int             `json:"paid"`
	Overdue      int             `json:"overdue"`
}

// Summarize computes the dashboard figures for bills.
func Summarize(bills []Bill) Summary {
	total := TotalPending(bills)
	s := Summary{
		TotalPending: total,
		Display:      FormatAmount(total),
		Pending:      CountByStatus(bills, StatusPending),
		Paid:         CountByStatus(bills, StatusPaid),
		Overdue:      CountByStatus(bills, StatusOverdue),
	}
	if next, ok := NextDue(bills); ok {
		s.NextDue = &next
	}
	return s
}

// TotalPending sums the amount of every pending bill.
func TotalPending(bills []Bill) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bills {
		if b.Status == StatusPending {
			total = total.Add(b.Amount)
		}
	}
	return total
}

// NextDue returns the pending bill with the earliest due date. Ties go to the
// bill that appears first in bills. ok is false when nothing is pending.
func NextDue(bills []Bill) (next Bill, ok bool) {
	for _, b := range bills {
		if b.Status != StatusPending {
			continue
		}
		if !ok || b.DueDate.Before(next.DueDate) {
			next, ok = b, true
		}
	}
	return next, ok
}

// CountByStatus counts bills in the given status.
func CountByStatus(bills []Bill, status Status) int {
	n := 0
	for _, b := range bills {
		if b.Status == status {
			n++
		}
	}
	return n
}

// DueBetween returns the pending bills due in [from, to], ordered by due date.
// Bills due on the same day keep their relative order.
func DueBetween(bills []Bill, from, to Date) []Bill {
	var out []Bill
	for _, b := range bills {
		if b.Status != StatusPending {
			continue
		}
		if b.DueDate.Before(from) || to.Before(b.DueDate) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}
