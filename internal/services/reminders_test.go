package services

import (
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
)

func bill(id, name string, due core.Date, status core.Status) core.Bill {
	return core.Bill{
		ID:       id,
		Name:     name,
		Amount:   decimal.NewFromInt(1200),
		DueDate:  due,
		Category: core.CategoryElectricity,
		Status:   status,
	}
}

func TestDaysBeforeRule_Fires(t *testing.T) {
	today := core.NewDate(2024, 1, 15)

	tests := []struct {
		name string
		rule DaysBeforeRule
		bill core.Bill
		want bool
	}{
		{"due in 3 days - fires", DaysBeforeRule{Days: 3}, bill("1", "Power", core.NewDate(2024, 1, 18), core.StatusPending), true},
		{"due in 4 days - silent", DaysBeforeRule{Days: 3}, bill("1", "Power", core.NewDate(2024, 1, 19), core.StatusPending), false},
		{"due tomorrow - fires", DaysBeforeRule{Days: 1}, bill("1", "Power", core.NewDate(2024, 1, 16), core.StatusPending), true},
		{"due today - fires", DaysBeforeRule{Days: 0}, bill("1", "Power", core.NewDate(2024, 1, 15), core.StatusPending), true},
		{"paid bill - silent", DaysBeforeRule{Days: 0}, bill("1", "Power", core.NewDate(2024, 1, 15), core.StatusPaid), false},
		{"past due but pending - silent", DaysBeforeRule{Days: 0}, bill("1", "Power", core.NewDate(2024, 1, 10), core.StatusPending), false},
		{"due in 17 days - silent", DaysBeforeRule{Days: 3}, bill("1", "Power", core.NewDate(2024, 2, 1), core.StatusPending), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Fires(tt.bill, today); got != tt.want {
				t.Errorf("DaysBeforeRule.Fires() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaysBeforeRule_Message(t *testing.T) {
	b := bill("1", "Power", core.NewDate(2024, 1, 18), core.StatusPending)

	tests := []struct {
		days int
		want string
	}{
		{3, "Power (₹1,200.00) is due in 3 days"},
		{1, "Power (₹1,200.00) is due tomorrow"},
		{0, "Power (₹1,200.00) is due today"},
	}
	for _, tt := range tests {
		if got := (DaysBeforeRule{Days: tt.days}).Message(b); got != tt.want {
			t.Errorf("Message(%d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestOverdueRule(t *testing.T) {
	today := core.NewDate(2024, 1, 15)
	rule := OverdueRule{}

	if !rule.Fires(bill("1", "Water", core.NewDate(2024, 1, 1), core.StatusOverdue), today) {
		t.Error("overdue status should fire")
	}
	// Overdue is never derived from the due date.
	if rule.Fires(bill("1", "Water", core.NewDate(2024, 1, 1), core.StatusPending), today) {
		t.Error("pending bill past its due date should not fire")
	}
	want := "Water (₹1,200.00) is overdue since 2024-01-01"
	if got := rule.Message(bill("1", "Water", core.NewDate(2024, 1, 1), core.StatusOverdue)); got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestGetReminderRule(t *testing.T) {
	for _, kind := range []ReminderKind{ReminderBefore3Days, ReminderBefore1Day, ReminderOnDueDate, ReminderOverdue} {
		if _, err := GetReminderRule(kind); err != nil {
			t.Errorf("GetReminderRule(%s) error = %v", kind, err)
		}
	}
	if _, err := GetReminderRule("weekly"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRegisterReminderRule(t *testing.T) {
	const kind ReminderKind = "before7Days"
	t.Cleanup(func() { unregister(kind) })

	RegisterReminderRule(kind, DaysBeforeRule{Days: 7})
	rule, err := GetReminderRule(kind)
	if err != nil {
		t.Fatalf("GetReminderRule() error = %v", err)
	}
	if !rule.Fires(bill("1", "Rent", core.NewDate(2024, 1, 22), core.StatusPending), core.NewDate(2024, 1, 15)) {
		t.Error("registered rule should fire")
	}
}

func unregister(kinds ...ReminderKind) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	for _, k := range kinds {
		delete(reminderRules, k)
	}
}

// Run with -race: registration and evaluation share the rule table.
func TestRegisterReminderRuleConcurrently(t *testing.T) {
	var kinds []ReminderKind
	for i := 0; i < 20; i++ {
		kinds = append(kinds, ReminderKind("custom"+strconv.Itoa(i)))
	}
	t.Cleanup(func() { unregister(kinds...) })

	bills := []core.Bill{bill("1", "Power", core.NewDate(2024, 1, 18), core.StatusPending)}
	today := core.NewDate(2024, 1, 15)

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(2)
		go func() {
			defer wg.Done()
			RegisterReminderRule(kind, DaysBeforeRule{Days: i})
		}()
		go func() {
			defer wg.Done()
			if got := DueReminders(bills, today, DefaultReminderSettings()); len(got) != 1 {
				t.Errorf("DueReminders() = %d reminders, want 1", len(got))
			}
		}()
	}
	wg.Wait()

	for _, kind := range kinds {
		if _, err := GetReminderRule(kind); err != nil {
			t.Errorf("rule %s missing: %v", kind, err)
		}
	}
}

func TestSettingsFromNames(t *testing.T) {
	got := SettingsFromNames([]string{"before1Day", "overdue", "bogus"})
	want := ReminderSettings{Before1Day: true, Overdue: true}
	if got != want {
		t.Errorf("SettingsFromNames() = %+v, want %+v", got, want)
	}
	if kinds := DefaultReminderSettings().Kinds(); len(kinds) != 4 {
		t.Errorf("default kinds = %v, want all four", kinds)
	}
}

func TestDueReminders(t *testing.T) {
	today := core.NewDate(2024, 1, 15)
	bills := []core.Bill{
		bill("a", "Internet", core.NewDate(2024, 1, 18), core.StatusPending),
		bill("b", "Power", core.NewDate(2024, 1, 15), core.StatusPending),
		bill("c", "Water", core.NewDate(2024, 1, 5), core.StatusOverdue),
		bill("d", "Phone", core.NewDate(2024, 1, 16), core.StatusPaid),
		bill("e", "Gas", core.NewDate(2024, 1, 16), core.StatusPending),
		bill("f", "Rent", core.NewDate(2024, 1, 30), core.StatusPending),
	}

	tests := []struct {
		name     string
		settings ReminderSettings
		wantIDs  []string
	}{
		{"all enabled", DefaultReminderSettings(), []string{"c", "b", "e", "a"}},
		{"only due today", ReminderSettings{OnDueDate: true}, []string{"b"}},
		{"only overdue", ReminderSettings{Overdue: true}, []string{"c"}},
		{"nothing enabled", ReminderSettings{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DueReminders(bills, today, tt.settings)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("DueReminders() returned %d reminders, want %d: %+v", len(got), len(tt.wantIDs), got)
			}
			for i, r := range got {
				if r.Bill.ID != tt.wantIDs[i] {
					t.Errorf("reminder %d = %s, want %s", i, r.Bill.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestReminder_ToMessage(t *testing.T) {
	r := DueReminders([]core.Bill{bill("a", "Internet", core.NewDate(2024, 1, 16), core.StatusPending)},
		core.NewDate(2024, 1, 15), DefaultReminderSettings())[0]

	msg := r.ToMessage(core.NewDate(2024, 1, 15).Time)
	if msg.Kind != "before1Day" || msg.BillID != "a" || msg.Amount != "1200" || msg.DueDate != "2024-01-16" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if r.DaysLeft != 1 {
		t.Errorf("DaysLeft = %d, want 1", r.DaysLeft)
	}
}
