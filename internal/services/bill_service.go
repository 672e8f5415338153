// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"billtrack/internal/amqp"
	"billtrack/internal/backend"
	"billtrack/internal/cache"
	"billtrack/internal/core"
	"billtrack/internal/localstore"
	"billtrack/internal/log"
	"billtrack/internal/metrics"
	"billtrack/internal/notify"
	"billtrack/internal/parser"
	"billtrack/internal/ports"
)

// TargetLocal labels operations served by the fallback store.
const TargetLocal = "local"

// EventPublisher announces bill changes and reminders. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishBillEvent(ctx context.Context, ev *amqp.BillEvent) error
	PublishReminder(ctx context.Context, r *amqp.ReminderMessage) error
}

// BillService routes bill operations to the connected backend adapter, or to
// the local fallback store while no adapter is connected.
type BillService struct {
	factory   backend.Factory
	store     *localstore.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
	notifier  notify.Notifier
	logger    *log.Logger
	now       func() time.Time
	lists     cache.Cache[[]core.Bill]

	// listGen is bumped by every invalidation; a read that started under an
	// older generation must not fill the cache.
	listMu  sync.Mutex
	listGen uint64

	mu     sync.RWMutex
	active ports.Adapter
}

type Option func(*BillService)

// WithPublisher publishes bill events and reminders through p.
func WithPublisher(p EventPublisher) Option {
	return func(s *BillService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BillService) { s.metrics = m }
}

// WithNotifier sets the notifier for notices the service emits itself.
func WithNotifier(n notify.Notifier) Option {
	return func(s *BillService) { s.notifier = n }
}

// WithListCache caches bill lists read from a connected backend. Any write
// through the service invalidates it.
func WithListCache(c cache.Cache[[]core.Bill]) Option {
	return func(s *BillService) { s.lists = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *BillService) { s.now = now }
}

func NewBillService(factory backend.Factory, store *localstore.Store, logger *log.Logger, opts ...Option) *BillService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &BillService{
		factory:  factory,
		store:    store,
		notifier: notify.Discard{},
		logger:   logger.WithComponent(log.ComponentService),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect builds a fresh adapter for key and connects it. On success it
// replaces the active adapter; on failure the previous routing is kept.
func (s *BillService) Connect(ctx context.Context, key string, cfg ports.ConnectionConfig) bool {
	adapter := s.factory.New(key)
	ok := adapter.Connect(ctx, cfg)
	s.metrics.Connect(adapter.Kind().String(), ok)
	if !ok {
		s.logger.WarnContext(ctx, "Backend connection failed", log.FieldBackend, adapter.Kind().String())
		return false
	}

	s.mu.Lock()
	s.active = adapter
	s.mu.Unlock()
	s.invalidate()

	s.logger.InfoContext(ctx, "Backend connected", log.FieldBackend, adapter.Kind().String())
	return true
}

// Connected reports the kind of the active adapter, if any.
func (s *BillService) Connected() (ports.Kind, bool) {
	a := s.adapter()
	if a == nil {
		return "", false
	}
	return a.Kind(), true
}

func (s *BillService) adapter() ports.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func target(a ports.Adapter) string {
	if a == nil {
		return TargetLocal
	}
	return a.Kind().String()
}

// List returns every bill from the active route. It never fails.
func (s *BillService) List(ctx context.Context) []core.Bill {
	a := s.adapter()
	var bills []core.Bill
	if a != nil {
		bills = s.remoteList(ctx, a)
	} else {
		bills = s.store.Load(ctx)
	}
	s.metrics.Operation(log.OpList, target(a), true)
	return bills
}

func (s *BillService) remoteList(ctx context.Context, a ports.Adapter) []core.Bill {
	if s.lists == nil {
		return a.GetAllBills(ctx)
	}
	key := target(a)
	if cached, ok := s.lists.Get(key); ok {
		s.logger.DebugContext(ctx, "Bill list cache hit", log.FieldBackend, key, log.FieldCount, len(cached))
		return append([]core.Bill(nil), cached...)
	}
	s.listMu.Lock()
	gen := s.listGen
	s.listMu.Unlock()

	bills := a.GetAllBills(ctx)
	// An empty list may be a degraded read; do not pin it.
	if len(bills) == 0 {
		return bills
	}
	s.listMu.Lock()
	defer s.listMu.Unlock()
	if gen != s.listGen {
		s.logger.DebugContext(ctx, "Bill list changed during read, not caching", log.FieldBackend, key)
		return bills
	}
	s.lists.Set(key, append([]core.Bill(nil), bills...))
	return bills
}

func (s *BillService) invalidate() {
	if s.lists == nil {
		return
	}
	s.listMu.Lock()
	defer s.listMu.Unlock()
	s.listGen++
	s.lists.Purge()
}

// Add validates the form and stores the resulting bill.
func (s *BillService) Add(ctx context.Context, f core.Form) (core.Bill, error) {
	d, err := f.Draft()
	if err != nil {
		s.notifier.Error(ctx, "Please fill in all required fields")
		return core.Bill{}, fmt.Errorf("validation failed: %w", err)
	}

	a := s.adapter()
	var b core.Bill
	if a != nil {
		b, err = a.AddBill(ctx, d)
	} else {
		b, err = s.store.AppendAndSave(ctx, d)
		if err == nil {
			s.notifier.Success(ctx, "Bill added successfully!")
		}
	}
	s.metrics.Operation(log.OpAdd, target(a), err == nil)
	s.invalidate()
	if err != nil {
		return core.Bill{}, fmt.Errorf("add bill: %w", err)
	}

	s.logger.InfoContext(ctx, "Bill added",
		log.NewFields().WithOperation(log.OpAdd).WithBill(b.ID, b.Name, b.Amount, string(b.Category)).ToSlice()...)
	s.publish(ctx, amqp.NewBillEvent(amqp.EventCreated, b, target(a)))
	return b, nil
}

// Update applies a partial update to the bill with the given id.
func (s *BillService) Update(ctx context.Context, id string, p core.Patch) (core.Bill, error) {
	b, err := s.update(ctx, id, p)
	if err != nil {
		return core.Bill{}, err
	}
	s.publish(ctx, amqp.NewBillEvent(amqp.EventUpdated, b, target(s.adapter())))
	return b, nil
}

// MarkPaid sets the status of the bill to paid.
func (s *BillService) MarkPaid(ctx context.Context, id string) (core.Bill, error) {
	b, err := s.update(ctx, id, core.StatusPatch(core.StatusPaid))
	if err != nil {
		return core.Bill{}, err
	}
	s.notifier.Success(ctx, "Bill marked as paid!")
	s.publish(ctx, amqp.NewBillEvent(amqp.EventPaid, b, target(s.adapter())))
	return b, nil
}

func (s *BillService) update(ctx context.Context, id string, p core.Patch) (core.Bill, error) {
	a := s.adapter()
	var (
		b   core.Bill
		err error
	)
	if a != nil {
		b, err = a.UpdateBill(ctx, id, p)
	} else {
		b, err = s.store.Update(ctx, id, p)
	}
	s.metrics.Operation(log.OpUpdate, target(a), err == nil)
	s.invalidate()
	if err != nil {
		return core.Bill{}, fmt.Errorf("update bill %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Bill updated", log.FieldBillID, id, "status", string(b.Status))
	return b, nil
}

// Delete removes the bill. It reports false without an error when the
// bill is unknown or the backend refused the deletion.
func (s *BillService) Delete(ctx context.Context, id string) (bool, error) {
	a := s.adapter()
	var (
		ok  bool
		err error
	)
	if a != nil {
		ok, err = a.DeleteBill(ctx, id)
	} else {
		ok, err = s.store.Delete(ctx, id)
		if err == nil && !ok {
			s.notifier.Error(ctx, "Bill not found")
		}
	}
	s.metrics.Operation(log.OpDelete, target(a), ok && err == nil)
	s.invalidate()
	if err != nil {
		return false, fmt.Errorf("delete bill %s: %w", id, err)
	}
	if ok {
		s.publish(ctx, &amqp.BillEvent{Type: amqp.EventDeleted, BillID: id, Backend: target(a), Timestamp: s.now()})
	}
	return ok, nil
}

// Export copies the locally stored bills into the connected backend,
// replacing its content. It fails with ports.ErrNotConnected when no
// adapter is connected.
func (s *BillService) Export(ctx context.Context) (int, bool, error) {
	a := s.adapter()
	if a == nil {
		return 0, false, fmt.Errorf("export bills: %w", ports.ErrNotConnected)
	}
	bills := s.store.Load(ctx)
	ok, err := a.ExportBills(ctx, bills)
	s.metrics.Operation(log.OpExport, target(a), ok && err == nil)
	s.invalidate()
	if err != nil {
		return 0, false, fmt.Errorf("export bills: %w", err)
	}
	if ok {
		s.logger.InfoContext(ctx, "Bills exported", log.FieldBackend, target(a), log.FieldCount, len(bills))
		s.publish(ctx, &amqp.BillEvent{Type: amqp.EventExported, Backend: target(a), Count: len(bills), Timestamp: s.now()})
	}
	return len(bills), ok, nil
}

// Summary computes the dashboard figures over the current bills.
func (s *BillService) Summary(ctx context.Context) core.Summary {
	return core.Summarize(s.List(ctx))
}

// Parse extracts bill fields from free text.
func (s *BillService) Parse(ctx context.Context, text string) (parser.Result, error) {
	r, err := parser.Parse(text)
	if err != nil {
		if errors.Is(err, parser.ErrEmptyText) {
			s.notifier.Error(ctx, "Please enter some text to parse")
		}
		return parser.Result{}, err
	}
	s.metrics.Parse(!r.Empty())
	if !r.Empty() {
		s.notifier.Success(ctx, "Parsed your bill details!")
	}
	s.logger.DebugContext(ctx, "Parsed bill text", log.FieldOperation, log.OpParse, "extracted", !r.Empty())
	return r, nil
}

// Reminders evaluates the reminder rules against the current bills.
func (s *BillService) Reminders(ctx context.Context, settings ReminderSettings) []Reminder {
	return DueReminders(s.List(ctx), core.DateOf(s.now()), settings)
}

// PublishReminders sends each reminder to the publisher and returns the ones
// that went out. Without a publisher nothing goes out.
func (s *BillService) PublishReminders(ctx context.Context, reminders []Reminder) []Reminder {
	var sent []Reminder
	for _, r := range reminders {
		s.metrics.Reminder(string(r.Kind))
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishReminder(ctx, r.ToMessage(s.now())); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish reminder",
				log.FieldOperation, log.OpRemind, log.FieldBillID, r.Bill.ID, log.FieldError, err)
			continue
		}
		sent = append(sent, r)
	}
	return sent
}

func (s *BillService) publish(ctx context.Context, ev *amqp.BillEvent) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No event publisher, skipping bill event", "type", string(ev.Type))
		return
	}
	if err := s.publisher.PublishBillEvent(ctx, ev); err != nil {
		// The change is stored; a lost event is only logged.
		s.logger.ErrorContext(ctx, "Failed to publish bill event",
			"type", string(ev.Type), log.FieldBillID, ev.BillID, log.FieldError, err)
	}
}

// Close closes the fallback store and the publisher when it is closable.
func (s *BillService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close bill service: %w", errors.Join(errs...))
	}
	return nil
}
