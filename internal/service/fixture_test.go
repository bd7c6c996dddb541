package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/repository"
	"go-warehouse-fulfillment/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// testClock advances one minute per reading so FIFO order follows call order.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) last(action string) (event.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Action == action {
			return p.events[i], true
		}
	}
	return event.Event{}, false
}

type fixture struct {
	t           *testing.T
	ctx         context.Context
	db          *gorm.DB
	actor       model.Principal
	events      *recordingPublisher
	audit       repository.AuditSink
	capacity    CapacityService
	ledger      LedgerService
	picking     PickingService
	fulfillment FulfillmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clock := &testClock{t: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	events := &recordingPublisher{}

	locationRepo := repository.NewLocationRepo()
	inventoryRepo := repository.NewInventoryRepo()
	pickingRepo := repository.NewPickingRepo()
	salesOrderRepo := repository.NewSalesOrderRepo()
	audit := repository.NewAuditRepo()

	capacity := NewCapacityService(db, locationRepo, inventoryRepo, audit, events, nil, 0)
	ledger := NewLedgerService(db, inventoryRepo, capacity, audit, events, nil)
	ledger.(*ledgerService).now = clock.Now
	picking := NewPickingService(db, pickingRepo, salesOrderRepo, ledger, audit, events, nil)
	picking.(*pickingService).now = clock.Now
	fulfillment := NewFulfillmentService(db, salesOrderRepo, pickingRepo, locationRepo,
		repository.NewItemRepo(db), repository.NewCustomerRepo(db), ledger, picking, audit, events, nil)
	fulfillment.(*fulfillmentService).now = clock.Now

	return &fixture{
		t:           t,
		ctx:         context.Background(),
		db:          db,
		actor:       model.Principal{ID: "u-1", Name: "Alice", Email: "alice@example.com"},
		events:      events,
		audit:       audit,
		capacity:    capacity,
		ledger:      ledger,
		picking:     picking,
		fulfillment: fulfillment,
	}
}

func (f *fixture) location(code string, category model.LocationCategory, maxCapacity int) *model.Location {
	f.t.Helper()
	loc, err := f.capacity.CreateLocation(f.ctx, f.actor, &CreateLocationRequest{
		Code: code, Name: code, Category: category, MaxCapacity: maxCapacity,
	})
	if err != nil {
		f.t.Fatalf("create location %s: %v", code, err)
	}
	return loc
}

func (f *fixture) item(code string, price string) *model.Item {
	f.t.Helper()
	item := &model.Item{Code: code, Name: code, Unit: "pcs", StandardPrice: decimal.RequireFromString(price)}
	if err := repository.NewItemRepo(f.db).Create(f.ctx, item); err != nil {
		f.t.Fatalf("create item %s: %v", code, err)
	}
	return item
}

func (f *fixture) customer() *model.Customer {
	f.t.Helper()
	c := &model.Customer{Code: "C-" + uuid.NewString()[:8], Name: "Customer", IsActive: true}
	if err := repository.NewCustomerRepo(f.db).Create(f.ctx, c); err != nil {
		f.t.Fatalf("create customer: %v", err)
	}
	return c
}

func (f *fixture) stock(item *model.Item, loc *model.Location, qty int) {
	f.t.Helper()
	if _, err := f.ledger.Adjust(f.ctx, f.actor, item.ID, loc.ID, qty); err != nil {
		f.t.Fatalf("stock %s@%s %+d: %v", item.Code, loc.Code, qty, err)
	}
}

type orderLine struct {
	item *model.Item
	qty  int
}

func (f *fixture) order(holding *model.Location, lines ...orderLine) *model.SalesOrder {
	f.t.Helper()
	req := &CreateSalesOrderRequest{CustomerID: f.customer().ID, HoldingLocationID: holding.ID}
	for _, l := range lines {
		req.Lines = append(req.Lines, SalesOrderLineRequest{ItemID: l.item.ID, Quantity: l.qty})
	}
	so, err := f.fulfillment.CreateSalesOrder(f.ctx, f.actor, req)
	if err != nil {
		f.t.Fatalf("create sales order: %v", err)
	}
	return so
}

func (f *fixture) quantityAt(item *model.Item, loc *model.Location) int {
	f.t.Helper()
	var rec model.InventoryRecord
	err := f.db.Where("item_id = ? AND location_id = ?", item.ID, loc.ID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0
	}
	if err != nil {
		f.t.Fatalf("read inventory: %v", err)
	}
	return rec.Quantity
}

func (f *fixture) lastUpdatedAt(item *model.Item, loc *model.Location) time.Time {
	f.t.Helper()
	var rec model.InventoryRecord
	if err := f.db.Where("item_id = ? AND location_id = ?", item.ID, loc.ID).First(&rec).Error; err != nil {
		f.t.Fatalf("read inventory: %v", err)
	}
	return rec.LastUpdated
}

func (f *fixture) capacityOf(loc *model.Location) int {
	f.t.Helper()
	var l model.Location
	if err := f.db.Unscoped().First(&l, "id = ?", loc.ID).Error; err != nil {
		f.t.Fatalf("read location: %v", err)
	}
	return l.CurrentCapacity
}

func (f *fixture) salesOrder(id uuid.UUID) *model.SalesOrder {
	f.t.Helper()
	so, err := f.fulfillment.GetSalesOrder(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get sales order: %v", err)
	}
	return so
}

func (f *fixture) pickingByID(id uuid.UUID) *model.Picking {
	f.t.Helper()
	p, err := f.picking.GetPicking(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get picking: %v", err)
	}
	return p
}

// assertKind fails unless err carries the given kind (and code, when non-empty).
func assertKind(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("err = nil, want %s", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("kind = %s, want %s (err: %v)", got, kind, err)
	}
	if code == "" {
		return
	}
	appErr, ok := err.(*Error)
	if !ok || appErr.Code != code {
		t.Fatalf("code of %v, want %s", err, code)
	}
}
