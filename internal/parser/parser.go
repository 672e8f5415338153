// Package parser extracts bill fields from pasted free text.
//
// Extraction is best-effort: an ordered list of independent rules runs over
// the lower-cased text and each rule may contribute some fields. Nothing here
// validates the result; callers merge it into a form and validate that.
package parser

import (
	"errors"
	"regexp"
	"strings"

	"billtrack/internal/core"
)

// ErrEmptyText is returned when there is nothing to parse.
var ErrEmptyText = errors.New("please enter some text to parse")

// Result holds the extracted fields. Empty strings mean "not found".
type Result struct {
	Name     string        `json:"name,omitempty"`
	Amount   string        `json:"amount,omitempty"`
	DueDate  string        `json:"dueDate,omitempty"`
	Category core.Category `json:"category,omitempty"`
}

// Empty reports whether no rule matched.
func (r Result) Empty() bool {
	return r == Result{}
}

// MergeInto overwrites the fields of f that r extracted and leaves the rest alone.
func (r Result) MergeInto(f core.Form) core.Form {
	if r.Name != "" {
		f.Name = r.Name
	}
	if r.Amount != "" {
		f.Amount = r.Amount
	}
	if r.DueDate != "" {
		f.DueDate = r.DueDate
	}
	if r.Category != "" {
		f.Category = string(r.Category)
	}
	return f
}

// Rule extracts zero or more fields from lower-cased text into r.
type Rule interface {
	Name() string
	Apply(text string, r *Result)
}

// Parser applies its rules in order.
type Parser struct {
	rules []Rule
}

// New returns a parser with the given rules, or the default rule chain when none are given.
func New(rules ...Rule) *Parser {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Parser{rules: rules}
}

// DefaultRules is amount, then date, then keyword inference.
func DefaultRules() []Rule {
	return []Rule{AmountRule{}, DateRule{}, KeywordRule{Groups: DefaultKeywordGroups()}}
}

// Parse runs every rule over text. Only empty input is an error.
func (p *Parser) Parse(text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}
	lower := strings.ToLower(text)
	var r Result
	for _, rule := range p.rules {
		rule.Apply(lower, &r)
	}
	return r, nil
}

// Parse runs the default rule chain.
func Parse(text string) (Result, error) {
	return defaultParser.Parse(text)
}

var defaultParser = New()

var amountPattern = regexp.MustCompile(`(?:rs\.?|rupees|₹)\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`)

// AmountRule finds the first currency cue followed by a number.
type AmountRule struct{}

func (AmountRule) Name() string { return "amount" }

func (AmountRule) Apply(text string, r *Result) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return
	}
	r.Amount = strings.ReplaceAll(m[1], ",", "")
}

type datePattern struct {
	re *regexp.Regexp
	// indexes of year, month, day submatches
	y, m, d int
}

// Tried in this order; the first pattern that matches anywhere wins.
var datePatterns = []datePattern{
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), 3, 2, 1}, // DD/MM/YYYY
	{regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`), 3, 2, 1}, // DD-MM-YYYY
	{regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`), 1, 2, 3}, // YYYY-MM-DD
}

// DateRule normalises the first recognised date to YYYY-MM-DD. Numeric dates
// are always read day-first; no calendar check is made.
type DateRule struct{}

func (DateRule) Name() string { return "date" }

func (DateRule) Apply(text string, r *Result) {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		r.DueDate = m[p.y] + "-" + pad2(m[p.m]) + "-" + pad2(m[p.d])
		return
	}
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// KeywordGroup maps any of its keywords to a display name and category.
type KeywordGroup struct {
	Keywords []string
	Name     string
	Category core.Category
}

// DefaultKeywordGroups returns the inference table in priority order.
func DefaultKeywordGroups() []KeywordGroup {
	return []KeywordGroup{
		{[]string{"electricity", "power"}, "Electricity Bill", core.CategoryElectricity},
		{[]string{"water"}, "Water Bill", core.CategoryWater},
		{[]string{"credit card", "card"}, "Credit Card Bill", core.CategoryCreditCard},
		{[]string{"internet", "wifi", "broadband"}, "Internet Bill", core.CategoryInternet},
		{[]string{"phone", "mobile"}, "Phone Bill", core.CategoryPhone},
		{[]string{"insurance"}, "Insurance Premium", core.CategoryInsurance},
		{[]string{"emi", "loan"}, "Loan EMI", core.CategoryEMI},
	}
}

// KeywordRule sets name and category from the first group with a keyword
// contained in the text. Matching is by substring.
type KeywordRule struct {
	Groups []KeywordGroup
}

func (KeywordRule) Name() string { return "keyword" }

func (k KeywordRule) Apply(text string, r *Result) {
	for _, g := range k.Groups {
		for _, kw := range g.Keywords {
			if strings.Contains(text, kw) {
				r.Name = g.Name
				r.Category = g.Category
				return
			}
		}
	}
}
