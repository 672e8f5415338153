// Package worker runs the background jobs: periodic reminder dispatch and
// the bill event consumer.
package worker

import (
	"context"
	"sync"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/services"
)

// ReminderSource is the slice of BillService the reminder worker needs.
type ReminderSource interface {
	Reminders(ctx context.Context, settings services.ReminderSettings) []services.Reminder
	PublishReminders(ctx context.Context, reminders []services.Reminder) []services.Reminder
}

// ReminderWorker evaluates reminders on an interval and publishes the ones
// not yet sent today.
type ReminderWorker struct {
	source   ReminderSource
	settings services.ReminderSettings
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu   sync.Mutex
	day  core.Date
	sent map[string]struct{}
}

func NewReminderWorker(source ReminderSource, settings services.ReminderSettings, interval time.Duration, logger *log.Logger) *ReminderWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReminderWorker{
		source:   source,
		settings: settings,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
		sent:     make(map[string]struct{}),
	}
}

// RunOnce publishes the reminders due now that were not already published
// today and returns how many went out.
func (w *ReminderWorker) RunOnce(ctx context.Context) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := core.DateOf(w.now())
	if today != w.day {
		w.day = today
		w.sent = make(map[string]struct{})
	}

	var fresh []services.Reminder
	for _, r := range w.source.Reminders(ctx, w.settings) {
		if _, done := w.sent[reminderKey(r)]; done {
			continue
		}
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		w.logger.DebugContext(ctx, "No new reminders", log.FieldOperation, log.OpRemind)
		return 0
	}

	sent := w.source.PublishReminders(ctx, fresh)
	for _, r := range sent {
		w.sent[reminderKey(r)] = struct{}{}
	}
	w.logger.InfoContext(ctx, "Reminders dispatched",
		log.FieldOperation, log.OpRemind,
		log.FieldCount, len(sent),
		"due", len(fresh))
	return len(sent)
}

// Run calls RunOnce at start and then on every tick until ctx is done.
func (w *ReminderWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Reminder worker started", "interval", w.interval.String())
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reminder worker stopped")
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func reminderKey(r services.Reminder) string {
	return string(r.Kind) + "/" + r.Bill.ID + "/" + r.Bill.DueDate.String()
}
