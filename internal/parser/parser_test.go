package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
)

func TestParseEndToEnd(t *testing.T) {
	r, err := Parse("Your electricity bill of Rs. 1,250.00 is due on 20/01/2024")
	require.NoError(t, err)
	assert.Equal(t, Result{
		Name:     "Electricity Bill",
		Category: core.CategoryElectricity,
		Amount:   "1250.00",
		DueDate:  "2024-01-20",
	}, r)
}

func TestParseRejectsBlankInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrEmptyText, "input %q", in)
	}
}

func TestParseUnrecognisedTextIsNotAnError(t *testing.T) {
	r, err := Parse("hello there, nothing to see")
	require.NoError(t, err)
	assert.True(t, r.Empty())
}

func TestAmountRule(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"rs with period", "amount rs. 450 due", "450"},
		{"rs without period", "rs 99.50 only", "99.50"},
		{"rupees word", "pay rupees 125,000", "125000"},
		{"only western grouping", "rupees 1,25,000", "1"},
		{"rupee symbol", "total ₹2,000", "2000"},
		{"no space", "rs.35000", "35000"},
		{"first match wins", "rs. 100 then rs. 200", "100"},
		{"one decimal digit is dropped", "rs 12.5", "12"},
		{"no cue", "pay 1250 now", ""},
		{"cue without number", "rs. later", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Result
			AmountRule{}.Apply(tt.in, &r)
			assert.Equal(t, tt.want, r.Amount)
		})
	}
}

func TestAmountIsCaseInsensitive(t *testing.T) {
	r, err := Parse("RUPEES 500 for WATER")
	require.NoError(t, err)
	assert.Equal(t, "500", r.Amount)
	assert.Equal(t, core.CategoryWater, r.Category)
}

func TestDateRule(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"slashes day first", "due 5/2/2024", "2024-02-05"},
		{"dashes day first", "due 05-12-2024", "2024-12-05"},
		{"iso unchanged", "due 2024-02-05", "2024-02-05"},
		{"iso single digits padded", "due 2024-2-5", "2024-02-05"},
		{"slash beats iso", "on 20/01/2024 or 2024-01-20", "2024-01-20"},
		{"slash beats iso regardless of position", "2024-03-01 then 20/01/2024", "2024-01-20"},
		{"dash beats iso", "2024-03-01 then 02-04-2024", "2024-04-02"},
		{"no calendar check", "31/02/2024", "2024-02-31"},
		{"no date", "due next week", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Result
			DateRule{}.Apply(tt.in, &r)
			assert.Equal(t, tt.want, r.DueDate)
		})
	}
}

func TestKeywordRule(t *testing.T) {
	rule := KeywordRule{Groups: DefaultKeywordGroups()}
	tests := []struct {
		in       string
		name     string
		category core.Category
	}{
		{"electricity and water", "Electricity Bill", core.CategoryElectricity},
		{"power cut notice", "Electricity Bill", core.CategoryElectricity},
		{"water and card", "Water Bill", core.CategoryWater},
		{"your credit card statement", "Credit Card Bill", core.CategoryCreditCard},
		{"broadband renewal", "Internet Bill", core.CategoryInternet},
		{"mobile postpaid", "Phone Bill", core.CategoryPhone},
		{"insurance premium due", "Insurance Premium", core.CategoryInsurance},
		{"home loan", "Loan EMI", core.CategoryEMI},
		{"groceries", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var r Result
			rule.Apply(tt.in, &r)
			assert.Equal(t, tt.name, r.Name)
			assert.Equal(t, tt.category, r.Category)
		})
	}
}

func TestMergeIntoIsNonDestructive(t *testing.T) {
	draft := core.Form{Name: "My bill", Amount: "10", DueDate: "2024-01-01", Category: "other", Description: "keep"}

	r, err := Parse("Rs. 450 due soon")
	require.NoError(t, err)
	merged := r.MergeInto(draft)

	assert.Equal(t, core.Form{Name: "My bill", Amount: "450", DueDate: "2024-01-01", Category: "other", Description: "keep"}, merged)
}

func TestCustomRules(t *testing.T) {
	p := New(DateRule{})
	r, err := p.Parse("electricity rs. 100 on 2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, Result{DueDate: "2024-01-02"}, r)
}
