package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"billtrack/internal/amqp"
	"billtrack/internal/backend"
	"billtrack/internal/cache"
	"billtrack/internal/core"
	"billtrack/internal/localstore"
	"billtrack/internal/metrics"
	"billtrack/internal/notify"
	"billtrack/internal/parser"
	"billtrack/internal/ports"
	"billtrack/internal/storage"
)

type fakePublisher struct {
	mu        sync.Mutex
	events    []*amqp.BillEvent
	reminders []*amqp.ReminderMessage
	err       error
	closed    bool
}

func (p *fakePublisher) PublishBillEvent(_ context.Context, ev *amqp.BillEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) PublishReminder(_ context.Context, r *amqp.ReminderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reminders = append(p.reminders, r)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc       *BillService
	store     *localstore.Store
	publisher *fakePublisher
	notices   *notify.Recorder
	metrics   *metrics.Metrics
}

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	notices := &notify.Recorder{}
	clock := func() time.Time { return testNow }

	store := localstore.New(storage.NewMemoryKV(), nil, localstore.WithClock(clock))
	factory := backend.NewFactory(backend.Config{Default: ports.KindSheets}, notices, nil)
	pub := &fakePublisher{}
	m := metrics.New()

	svc := NewBillService(factory, store, nil,
		WithPublisher(pub),
		WithMetrics(m),
		WithNotifier(notices),
		WithClock(clock))
	return &fixture{svc: svc, store: store, publisher: pub, notices: notices, metrics: m}
}

func form(name, amount, due string) core.Form {
	return core.Form{Name: name, Amount: amount, DueDate: due, Category: "electricity"}
}

func lastNotice(t *testing.T, r *notify.Recorder) string {
	t.Helper()
	n, ok := r.Last()
	if !ok {
		t.Fatal("expected a notice")
	}
	return n.Message
}

func TestBillService_RoutesToLocalStoreUntilConnected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, ok := f.svc.Connected(); ok {
		t.Fatal("service should start without an adapter")
	}

	b, err := f.svc.Add(ctx, form("Power", "1200", "2024-01-20"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if b.ID != "1705312800000" {
		t.Errorf("local id = %s, want the millisecond timestamp", b.ID)
	}
	if got := lastNotice(t, f.notices); got != "Bill added successfully!" {
		t.Errorf("notice = %q", got)
	}
	if got := f.store.Load(ctx); len(got) != 1 {
		t.Fatalf("local store holds %d bills, want 1", len(got))
	}
	if ev := f.publisher.events[0]; ev.Type != amqp.EventCreated || ev.Backend != TargetLocal {
		t.Errorf("unexpected event: %+v", ev)
	}

	if !f.svc.Connect(ctx, "airtable", ports.ConnectionConfig{APIKey: "key", BaseID: "app"}) {
		t.Fatal("Connect() = false")
	}
	if k, ok := f.svc.Connected(); !ok || k != ports.KindAirtable {
		t.Fatalf("Connected() = %v, %v", k, ok)
	}

	// The adapter does not see local bills until they are exported.
	if got := f.svc.List(ctx); len(got) != 0 {
		t.Fatalf("airtable list = %d bills, want 0", len(got))
	}
	if _, err := f.svc.Add(ctx, form("Water", "300", "2024-01-25")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got := f.svc.List(ctx); len(got) != 1 || got[0].Name != "Water" {
		t.Fatalf("airtable list = %+v", got)
	}
	if got := f.store.Load(ctx); len(got) != 1 {
		t.Errorf("local store changed after connecting: %d bills", len(got))
	}
	if ev := f.publisher.events[1]; ev.Backend != "airtable" {
		t.Errorf("event backend = %s, want airtable", ev.Backend)
	}
}

func TestBillService_FailedConnectKeepsRouting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if !f.svc.Connect(ctx, "airtable", ports.ConnectionConfig{APIKey: "key", BaseID: "app"}) {
		t.Fatal("Connect() = false")
	}
	if f.svc.Connect(ctx, "google-sheets", ports.ConnectionConfig{}) {
		t.Fatal("Connect() without a sheet id should fail")
	}
	if got := lastNotice(t, f.notices); got != "Please enter a Google Sheet ID" {
		t.Errorf("notice = %q", got)
	}
	if k, _ := f.svc.Connected(); k != ports.KindAirtable {
		t.Errorf("active backend = %v, want airtable", k)
	}

	const want = `
# HELP billtrack_backend_connects_total Backend connection attempts by backend and outcome.
# TYPE billtrack_backend_connects_total counter
billtrack_backend_connects_total{backend="airtable",outcome="success"} 1
billtrack_backend_connects_total{backend="google-sheets",outcome="failure"} 1
`
	if err := testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(want), "billtrack_backend_connects_total"); err != nil {
		t.Error(err)
	}
}

func TestBillService_Export(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Export(ctx); !errors.Is(err, ports.ErrNotConnected) {
		t.Fatalf("Export() without adapter error = %v, want ErrNotConnected", err)
	}

	for _, fm := range []core.Form{form("Power", "1200", "2024-01-20"), form("Gas", "450", "2024-01-22")} {
		if _, err := f.svc.Add(ctx, fm); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if !f.svc.Connect(ctx, "google-sheets", ports.ConnectionConfig{SheetID: "sheet-1"}) {
		t.Fatal("Connect() = false")
	}
	if got := f.svc.List(ctx); len(got) != 6 {
		t.Fatalf("seeded sheet has %d bills, want 6", len(got))
	}

	n, ok, err := f.svc.Export(ctx)
	if err != nil || !ok || n != 2 {
		t.Fatalf("Export() = %d, %v, %v", n, ok, err)
	}
	if got := lastNotice(t, f.notices); got != "Exported 2 bills to Google Sheets!" {
		t.Errorf("notice = %q", got)
	}
	if got := f.svc.List(ctx); len(got) != 2 {
		t.Errorf("sheet holds %d bills after export, want 2", len(got))
	}
	types := f.publisher.types()
	if types[len(types)-1] != amqp.EventExported {
		t.Errorf("last event = %v, want exported", types[len(types)-1])
	}
}

func TestBillService_UpdateAndMarkPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Add(ctx, form("Power", "1200", "2024-01-20"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	name := "Electricity"
	updated, err := f.svc.Update(ctx, b.ID, core.Patch{Name: &name})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Electricity" || !updated.Amount.Equal(b.Amount) {
		t.Errorf("unexpected update: %+v", updated)
	}

	paid, err := f.svc.MarkPaid(ctx, b.ID)
	if err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}
	if paid.Status != core.StatusPaid {
		t.Errorf("status = %s, want paid", paid.Status)
	}
	if !paid.UpdatedAt.After(updated.UpdatedAt) {
		t.Error("updatedAt should move forward")
	}
	if got := lastNotice(t, f.notices); got != "Bill marked as paid!" {
		t.Errorf("notice = %q", got)
	}

	want := []amqp.EventType{amqp.EventCreated, amqp.EventUpdated, amqp.EventPaid}
	got := f.publisher.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	if _, err := f.svc.MarkPaid(ctx, "missing"); !errors.Is(err, ports.ErrBillNotFound) {
		t.Errorf("MarkPaid(missing) error = %v, want ErrBillNotFound", err)
	}
}

func TestBillService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Add(ctx, form("Power", "1200", "2024-01-20"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	ok, err := f.svc.Delete(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("Delete(missing) = %v, %v", ok, err)
	}
	if got := lastNotice(t, f.notices); got != "Bill not found" {
		t.Errorf("notice = %q", got)
	}

	ok, err = f.svc.Delete(ctx, b.ID)
	if err != nil || !ok {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	if got := f.svc.List(ctx); len(got) != 0 {
		t.Errorf("list after delete = %d bills", len(got))
	}
	if ev := f.publisher.events[len(f.publisher.events)-1]; ev.Type != amqp.EventDeleted || ev.BillID != b.ID {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestBillService_AddRejectsInvalidForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		form core.Form
		want error
	}{
		{"missing name", form("", "100", "2024-01-20"), core.ErrEmptyName},
		{"zero amount", form("Power", "0", "2024-01-20"), core.ErrInvalidAmount},
		{"bad date", form("Power", "100", "20-01"), core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Add(ctx, tt.form)
			if !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}
	if got := lastNotice(t, f.notices); got != "Please fill in all required fields" {
		t.Errorf("notice = %q", got)
	}
	if len(f.publisher.events) != 0 {
		t.Errorf("invalid forms published %d events", len(f.publisher.events))
	}
}

func TestBillService_PublisherFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	if _, err := f.svc.Add(context.Background(), form("Power", "1200", "2024-01-20")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got := f.store.Load(context.Background()); len(got) != 1 {
		t.Errorf("bill not stored: %d", len(got))
	}
}

func TestBillService_Parse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Parse(ctx, "   "); !errors.Is(err, parser.ErrEmptyText) {
		t.Fatalf("Parse(blank) error = %v", err)
	}
	if got := lastNotice(t, f.notices); got != "Please enter some text to parse" {
		t.Errorf("notice = %q", got)
	}

	r, err := f.svc.Parse(ctx, "Water bill rs 450 due 25/01/2024")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if r.Amount != "450" || r.DueDate != "2024-01-25" || r.Category != core.CategoryWater {
		t.Errorf("unexpected result: %+v", r)
	}
	if got := lastNotice(t, f.notices); got != "Parsed your bill details!" {
		t.Errorf("notice = %q", got)
	}
}

func TestBillService_Summary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if !f.svc.Connect(ctx, "google-sheets", ports.ConnectionConfig{SheetID: "sheet-1"}) {
		t.Fatal("Connect() = false")
	}
	s := f.svc.Summary(ctx)
	if s.Display != "₹42,499.00" || s.Paid != 1 || s.Pending != 5 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestBillService_Reminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, fm := range []core.Form{
		form("Power", "1200", "2024-01-18"),
		form("Water", "300", "2024-01-15"),
		form("Gas", "450", "2024-01-28"),
	} {
		if _, err := f.svc.Add(ctx, fm); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	reminders := f.svc.Reminders(ctx, DefaultReminderSettings())
	if len(reminders) != 2 {
		t.Fatalf("Reminders() = %d, want 2", len(reminders))
	}
	if reminders[0].Bill.Name != "Water" || reminders[0].Kind != ReminderOnDueDate {
		t.Errorf("first reminder = %+v", reminders[0])
	}

	if sent := f.svc.PublishReminders(ctx, reminders); len(sent) != 2 {
		t.Errorf("PublishReminders() = %d, want 2", len(sent))
	}
	if f.publisher.reminders[1].Message != "Power (₹1,200.00) is due in 3 days" {
		t.Errorf("message = %q", f.publisher.reminders[1].Message)
	}

	f.publisher.err = errors.New("broker down")
	if sent := f.svc.PublishReminders(ctx, reminders); len(sent) != 0 {
		t.Errorf("PublishReminders() with failing broker = %d, want 0", len(sent))
	}
}

func TestBillService_Close(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !f.publisher.closed {
		t.Error("publisher should be closed")
	}
}

func TestBillService_ListCache(t *testing.T) {
	ctx := context.Background()
	factory := backend.NewFactory(backend.Config{}, nil, nil)
	lists := cache.NewLRUCache[[]core.Bill](4, time.Minute)

	cached := NewBillService(factory, localstore.New(storage.NewMemoryKV(), nil), nil, WithListCache(lists))
	other := NewBillService(factory, localstore.New(storage.NewMemoryKV(), nil), nil)
	for _, svc := range []*BillService{cached, other} {
		if !svc.Connect(ctx, "google-sheets", ports.ConnectionConfig{SheetID: "shared"}) {
			t.Fatal("Connect() = false")
		}
	}

	if got := cached.List(ctx); len(got) != 6 {
		t.Fatalf("List() = %d bills, want 6", len(got))
	}
	if ok, err := other.Delete(ctx, "1"); err != nil || !ok {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	if got := cached.List(ctx); len(got) != 6 {
		t.Errorf("cached List() = %d bills, want the cached 6", len(got))
	}

	if _, err := cached.Add(ctx, form("Power", "1200", "2024-01-20")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got := cached.List(ctx); len(got) != 6 {
		t.Errorf("List() after write = %d bills, want 5 remaining plus 1 added", len(got))
	}
	if lists.Size() != 1 {
		t.Errorf("cache size = %d, want 1", lists.Size())
	}
}

// hookFactory wraps each adapter so a callback runs after GetAllBills has
// taken its snapshot but before the service sees it.
type hookFactory struct {
	backend.Factory
	afterRead func()
}

func (f hookFactory) New(key string) ports.Adapter {
	return hookAdapter{Adapter: f.Factory.New(key), afterRead: f.afterRead}
}

type hookAdapter struct {
	ports.Adapter
	afterRead func()
}

func (a hookAdapter) GetAllBills(ctx context.Context) []core.Bill {
	bills := a.Adapter.GetAllBills(ctx)
	if a.afterRead != nil {
		a.afterRead()
	}
	return bills
}

func TestBillService_ListCacheSkipsStaleRead(t *testing.T) {
	ctx := context.Background()
	base := backend.NewFactory(backend.Config{}, nil, nil)
	lists := cache.NewLRUCache[[]core.Bill](4, time.Minute)

	var cached *BillService
	writes := 0
	factory := hookFactory{Factory: base, afterRead: func() {
		if writes > 0 {
			return
		}
		writes++
		if _, err := cached.Delete(ctx, "1"); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
	}}
	cached = NewBillService(factory, localstore.New(storage.NewMemoryKV(), nil), nil, WithListCache(lists))
	if !cached.Connect(ctx, "google-sheets", ports.ConnectionConfig{SheetID: "stale"}) {
		t.Fatal("Connect() = false")
	}

	if got := cached.List(ctx); len(got) != 6 {
		t.Fatalf("List() = %d bills, want the 6 read before the delete", len(got))
	}
	if lists.Size() != 0 {
		t.Errorf("cache size = %d, want 0 after a write raced the read", lists.Size())
	}
	if got := cached.List(ctx); len(got) != 5 {
		t.Errorf("List() = %d bills, want 5 after the delete", len(got))
	}
	if lists.Size() != 1 {
		t.Errorf("cache size = %d, want 1", lists.Size())
	}
}
