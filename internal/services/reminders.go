// This file implements the reminder rules. Each reminder setting has its own
// strategy deciding whether a bill deserves a reminder on a given day.

package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"billtrack/internal/amqp"
	"billtrack/internal/core"
)

type ReminderKind string

const (
	ReminderBefore3Days ReminderKind = "before3Days"
	ReminderBefore1Day  ReminderKind = "before1Day"
	ReminderOnDueDate   ReminderKind = "onDueDate"
	ReminderOverdue     ReminderKind = "overdue"
)

// ReminderRule is the strategy interface for one reminder setting.
type ReminderRule interface {
	// Fires returns true if b deserves a reminder on today.
	Fires(b core.Bill, today core.Date) bool
	// Message describes the reminder for b.
	Message(b core.Bill) string
}

// DaysBeforeRule fires for pending bills due in exactly Days days.
type DaysBeforeRule struct {
	Days int
}

func (r DaysBeforeRule) Fires(b core.Bill, today core.Date) bool {
	return b.Status == core.StatusPending && today.DaysUntil(b.DueDate) == r.Days
}

func (r DaysBeforeRule) Message(b core.Bill) string {
	switch r.Days {
	case 0:
		return fmt.Sprintf("%s (%s) is due today", b.Name, core.FormatAmount(b.Amount))
	case 1:
		return fmt.Sprintf("%s (%s) is due tomorrow", b.Name, core.FormatAmount(b.Amount))
	default:
		return fmt.Sprintf("%s (%s) is due in %d days", b.Name, core.FormatAmount(b.Amount), r.Days)
	}
}

// OverdueRule fires for bills explicitly marked overdue. The status is never
// derived from the due date.
type OverdueRule struct{}

func (OverdueRule) Fires(b core.Bill, _ core.Date) bool {
	return b.Status == core.StatusOverdue
}

func (OverdueRule) Message(b core.Bill) string {
	return fmt.Sprintf("%s (%s) is overdue since %s", b.Name, core.FormatAmount(b.Amount), b.DueDate)
}

var (
	rulesMu       sync.RWMutex
	reminderRules = map[ReminderKind]ReminderRule{
		ReminderBefore3Days: DaysBeforeRule{Days: 3},
		ReminderBefore1Day:  DaysBeforeRule{Days: 1},
		ReminderOnDueDate:   DaysBeforeRule{Days: 0},
		ReminderOverdue:     OverdueRule{},
	}
)

// GetReminderRule returns the rule for a reminder kind.
func GetReminderRule(kind ReminderKind) (ReminderRule, error) {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	rule, ok := reminderRules[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reminder kind: %s", kind)
	}
	return rule, nil
}

// RegisterReminderRule adds or replaces the rule for kind.
// It is safe to call while reminders are being evaluated.
func RegisterReminderRule(kind ReminderKind, rule ReminderRule) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	reminderRules[kind] = rule
}

// ReminderSettings toggles each reminder kind.
type ReminderSettings struct {
	Before3Days bool `json:"before3Days"`
	Before1Day  bool `json:"before1Day"`
	OnDueDate   bool `json:"onDueDate"`
	Overdue     bool `json:"overdue"`
}

func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{Before3Days: true, Before1Day: true, OnDueDate: true, Overdue: true}
}

// SettingsFromNames enables the kinds listed in names. Unknown names are ignored.
func SettingsFromNames(names []string) ReminderSettings {
	var s ReminderSettings
	for _, n := range names {
		switch ReminderKind(n) {
		case ReminderBefore3Days:
			s.Before3Days = true
		case ReminderBefore1Day:
			s.Before1Day = true
		case ReminderOnDueDate:
			s.OnDueDate = true
		case ReminderOverdue:
			s.Overdue = true
		}
	}
	return s
}

// Kinds returns the enabled kinds in evaluation order.
func (s ReminderSettings) Kinds() []ReminderKind {
	var out []ReminderKind
	if s.Before3Days {
		out = append(out, ReminderBefore3Days)
	}
	if s.Before1Day {
		out = append(out, ReminderBefore1Day)
	}
	if s.OnDueDate {
		out = append(out, ReminderOnDueDate)
	}
	if s.Overdue {
		out = append(out, ReminderOverdue)
	}
	return out
}

type Reminder struct {
	Kind     ReminderKind `json:"kind"`
	Bill     core.Bill    `json:"bill"`
	DaysLeft int          `json:"daysLeft"`
	Message  string       `json:"message"`
}

// DueReminders evaluates the enabled rules against bills. The result is
// ordered by due date; bills with the same due date keep their input order.
func DueReminders(bills []core.Bill, today core.Date, settings ReminderSettings) []Reminder {
	var out []Reminder
	for _, kind := range settings.Kinds() {
		rule, err := GetReminderRule(kind)
		if err != nil {
			continue
		}
		for _, b := range bills {
			if !rule.Fires(b, today) {
				continue
			}
			out = append(out, Reminder{
				Kind:     kind,
				Bill:     b,
				DaysLeft: today.DaysUntil(b.DueDate),
				Message:  rule.Message(b),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Bill.DueDate.Before(out[j].Bill.DueDate)
	})
	return out
}

// ToMessage converts r for publishing.
func (r Reminder) ToMessage(now time.Time) *amqp.ReminderMessage {
	return &amqp.ReminderMessage{
		Kind:      string(r.Kind),
		BillID:    r.Bill.ID,
		Name:      r.Bill.Name,
		Amount:    r.Bill.Amount.String(),
		DueDate:   r.Bill.DueDate.String(),
		Message:   r.Message,
		Timestamp: now,
	}
}
