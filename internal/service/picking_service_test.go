package service

import (
	"strings"
	"sync"
	"testing"

	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/model"

	"github.com/google/uuid"
)

// twoSlotStock holds I1 with 40 units at L1 (older) and 30 at L2 (newer).
func twoSlotStock(t *testing.T) (*fixture, *model.Item, *model.Location, *model.Location, *model.Location) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	l2 := f.location("L2", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 500)
	item := f.item("I1", "2.50")
	f.stock(item, l1, 40)
	f.stock(item, l2, 30)
	return f, item, l1, l2, dock
}

func detailAt(t *testing.T, p *model.Picking, loc *model.Location) model.PickingDetail {
	t.Helper()
	for _, d := range p.Details {
		if d.LocationID == loc.ID {
			return d
		}
	}
	t.Fatalf("picking %s has no detail at %s", p.PickingNumber, loc.Code)
	return model.PickingDetail{}
}

func TestPicking_SuggestLocationsFifoSplit(t *testing.T) {
	f, item, l1, l2, _ := twoSlotStock(t)

	plan, err := f.picking.SuggestLocations(f.ctx, item.ID, 50)
	if err != nil {
		t.Fatalf("SuggestLocations: %v", err)
	}
	want := []model.LocationSuggestion{
		{LocationID: l1.ID, LocationCode: "L1", QuantityAllocated: 40, LocationAvailable: 40},
		{LocationID: l2.ID, LocationCode: "L2", QuantityAllocated: 10, LocationAvailable: 30},
	}
	if len(plan) != len(want) {
		t.Fatalf("plan = %+v, want %+v", plan, want)
	}
	for i := range want {
		if plan[i] != want[i] {
			t.Errorf("plan[%d] = %+v, want %+v", i, plan[i], want[i])
		}
	}
}

func TestPicking_SuggestLocationsErrors(t *testing.T) {
	f, item, _, _, _ := twoSlotStock(t)

	_, err := f.picking.SuggestLocations(f.ctx, item.ID, 0)
	assertKind(t, err, KindValidation, CodeInvalidQuantity)

	_, err = f.picking.SuggestLocations(f.ctx, item.ID, 71)
	assertKind(t, err, KindInsufficientStock, "")
}

func TestPicking_SuggestIgnoresNonStorage(t *testing.T) {
	f, item, _, _, dock := twoSlotStock(t)
	f.stock(item, dock, 100)

	_, err := f.picking.SuggestLocations(f.ctx, item.ID, 80)
	assertKind(t, err, KindInsufficientStock, "")
}

func TestPicking_GenerateCreatesFifoDetails(t *testing.T) {
	f, item, l1, l2, dock := twoSlotStock(t)
	so := f.order(dock, orderLine{item, 50})

	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if p.Status != model.PickingPending {
		t.Errorf("status = %s, want %s", p.Status, model.PickingPending)
	}
	if !strings.HasPrefix(p.PickingNumber, "PCK-") {
		t.Errorf("picking number = %q, want PCK- prefix", p.PickingNumber)
	}

	stored := f.pickingByID(p.ID)
	if len(stored.Details) != 2 {
		t.Fatalf("details = %d, want 2", len(stored.Details))
	}
	if d := detailAt(t, stored, l1); d.QuantityRequired != 40 {
		t.Errorf("L1 required = %d, want 40", d.QuantityRequired)
	}
	if d := detailAt(t, stored, l2); d.QuantityRequired != 10 {
		t.Errorf("L2 required = %d, want 10", d.QuantityRequired)
	}
	if got := f.salesOrder(so.ID).Status; got != model.SOInProgress {
		t.Errorf("sales order status = %s, want %s", got, model.SOInProgress)
	}
	// generation reserves nothing in the ledger
	if got := f.quantityAt(item, l1); got != 40 {
		t.Errorf("L1 quantity = %d, want 40", got)
	}
	if _, ok := f.events.last(event.ActionPickingGenerated); !ok {
		t.Errorf("no %s event", event.ActionPickingGenerated)
	}
}

func TestPicking_GenerateInsufficientStockWritesNothing(t *testing.T) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 100)
	item := f.item("I1", "1.00")
	f.stock(item, l1, 30)
	so := f.order(dock, orderLine{item, 50})

	_, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	assertKind(t, err, KindInsufficientStock, "")

	var pickings int64
	f.db.Model(&model.Picking{}).Count(&pickings)
	if pickings != 0 {
		t.Errorf("pickings = %d, want 0", pickings)
	}
	if got := f.salesOrder(so.ID).Status; got != model.SOPending {
		t.Errorf("sales order status = %s, want %s", got, model.SOPending)
	}
}

func TestPicking_GenerateAllOrNothingAcrossLines(t *testing.T) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 100)
	i1 := f.item("I1", "1.00")
	i2 := f.item("I2", "1.00")
	f.stock(i1, l1, 10)
	f.stock(i2, l1, 2)
	so := f.order(dock, orderLine{i1, 5}, orderLine{i2, 3})

	_, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	assertKind(t, err, KindInsufficientStock, "")

	var details int64
	f.db.Model(&model.PickingDetail{}).Count(&details)
	if details != 0 {
		t.Errorf("picking details = %d, want 0", details)
	}
}

func TestPicking_GenerateDoesNotDoubleAllocate(t *testing.T) {
	f, item, l1, l2, dock := twoSlotStock(t)
	so := f.order(dock, orderLine{item, 30}, orderLine{item, 20})

	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	perLocation := map[uuid.UUID]int{}
	for _, d := range f.pickingByID(p.ID).Details {
		perLocation[d.LocationID] += d.QuantityRequired
	}
	if perLocation[l1.ID] != 40 || perLocation[l2.ID] != 10 {
		t.Errorf("allocated L1=%d L2=%d, want 40 and 10", perLocation[l1.ID], perLocation[l2.ID])
	}

	f2, item2, _, _, dock2 := twoSlotStock(t)
	over := f2.order(dock2, orderLine{item2, 40}, orderLine{item2, 31})
	_, err = f2.picking.Generate(f2.ctx, f2.actor, over.ID)
	assertKind(t, err, KindInsufficientStock, "")
}

func TestPicking_GenerateTwiceIsRejected(t *testing.T) {
	f, item, _, _, dock := twoSlotStock(t)
	so := f.order(dock, orderLine{item, 10})

	if _, err := f.picking.Generate(f.ctx, f.actor, so.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	assertKind(t, err, KindInvalidState, CodePickingAlreadyExists)
}

func TestPicking_GenerateUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.picking.Generate(f.ctx, f.actor, uuid.New())
	assertKind(t, err, KindNotFound, "")
}

func TestPicking_RecordPickBounds(t *testing.T) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 100)
	item := f.item("I1", "1.00")
	f.stock(item, l1, 50)
	so := f.order(dock, orderLine{item, 20})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	detail := p.Details[0]

	d, err := f.picking.RecordPick(f.ctx, f.actor, detail.ID, 15)
	if err != nil {
		t.Fatalf("RecordPick: %v", err)
	}
	if d.QuantityPicked != 15 || d.Status() != model.DetailPartiallyPicked {
		t.Errorf("picked = %d status = %s, want 15 %s", d.QuantityPicked, d.Status(), model.DetailPartiallyPicked)
	}

	_, err = f.picking.RecordPick(f.ctx, f.actor, detail.ID, 10)
	assertKind(t, err, KindValidation, CodeInvalidQuantity)
	_, err = f.picking.RecordPick(f.ctx, f.actor, detail.ID, 0)
	assertKind(t, err, KindValidation, CodeInvalidQuantity)

	stored := f.pickingByID(p.ID)
	if stored.Details[0].QuantityPicked != 15 {
		t.Errorf("picked = %d, want 15", stored.Details[0].QuantityPicked)
	}
	if stored.Status != model.PickingInProgress {
		t.Errorf("picking status = %s, want %s", stored.Status, model.PickingInProgress)
	}
	if got := f.quantityAt(item, l1); got != 35 {
		t.Errorf("L1 quantity = %d, want 35", got)
	}
	if got := f.capacityOf(l1); got != 35 {
		t.Errorf("L1 capacity = %d, want 35", got)
	}
}

func TestPicking_RecordPickUntilDetailCompleted(t *testing.T) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 100)
	item := f.item("I1", "1.00")
	f.stock(item, l1, 60)
	so := f.order(dock, orderLine{item, 50})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	detail := detailAt(t, p, l1)
	if detail.QuantityRequired != 50 {
		t.Fatalf("required = %d, want 50", detail.QuantityRequired)
	}

	d, err := f.picking.RecordPick(f.ctx, f.actor, detail.ID, 40)
	if err != nil {
		t.Fatalf("RecordPick(40): %v", err)
	}
	if d.Status() != model.DetailPartiallyPicked || d.RemainingQuantity() != 10 {
		t.Errorf("after 40: status = %s remaining = %d, want %s 10", d.Status(), d.RemainingQuantity(), model.DetailPartiallyPicked)
	}
	if got := f.pickingByID(p.ID).Status; got != model.PickingInProgress {
		t.Errorf("picking status = %s, want %s", got, model.PickingInProgress)
	}

	d, err = f.picking.RecordPick(f.ctx, f.actor, detail.ID, 10)
	if err != nil {
		t.Fatalf("RecordPick(10): %v", err)
	}
	if d.Status() != model.DetailCompleted || d.RemainingQuantity() != 0 {
		t.Errorf("after 50: status = %s remaining = %d, want %s 0", d.Status(), d.RemainingQuantity(), model.DetailCompleted)
	}
	stored := detailAt(t, f.pickingByID(p.ID), l1)
	if stored.QuantityPicked != 50 || stored.Status() != model.DetailCompleted {
		t.Errorf("stored picked = %d status = %s", stored.QuantityPicked, stored.Status())
	}
	if got := f.quantityAt(item, l1); got != 10 {
		t.Errorf("L1 quantity = %d, want 10", got)
	}
}

func TestPicking_RecordPickNeedsLedgerStock(t *testing.T) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 100)
	item := f.item("I1", "1.00")
	f.stock(item, l1, 20)
	so := f.order(dock, orderLine{item, 20})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// stock leaves the slot after generation
	f.stock(item, l1, -15)

	_, err = f.picking.RecordPick(f.ctx, f.actor, p.Details[0].ID, 10)
	assertKind(t, err, KindInsufficientStock, "")
	if got := f.pickingByID(p.ID).Details[0].QuantityPicked; got != 0 {
		t.Errorf("picked = %d, want 0", got)
	}
}

// The sqlite test database has one connection and ignores FOR UPDATE, so the
// two picks run one after the other. This covers the stock check under
// contention, not the postgres row locks.
func TestPicking_ConcurrentPicksCannotOversell(t *testing.T) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 100)
	item := f.item("I1", "1.00")
	f.stock(item, l1, 20)
	so := f.order(dock, orderLine{item, 10}, orderLine{item, 10})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(p.Details) != 2 {
		t.Fatalf("details = %d, want 2", len(p.Details))
	}
	f.stock(item, l1, -5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, d := range p.Details {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.picking.RecordPick(f.ctx, f.actor, id, 10)
		}(i, d.ID)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch KindOf(err) {
		case "":
			ok++
		case KindInsufficientStock:
			short++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || short != 1 {
		t.Errorf("succeeded = %d, insufficient = %d, want 1 and 1", ok, short)
	}
	if got := f.quantityAt(item, l1); got != 5 {
		t.Errorf("L1 quantity = %d, want 5", got)
	}
}

func TestPicking_CompleteRequiresSomethingPicked(t *testing.T) {
	f, item, l1, _, dock := twoSlotStock(t)
	so := f.order(dock, orderLine{item, 20})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	_, err = f.picking.Complete(f.ctx, f.actor, p.ID)
	assertKind(t, err, KindInvalidState, CodeNothingPicked)

	if _, err := f.picking.RecordPick(f.ctx, f.actor, detailAt(t, p, l1).ID, 20); err != nil {
		t.Fatalf("RecordPick: %v", err)
	}
	done, err := f.picking.Complete(f.ctx, f.actor, p.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != model.PickingCompleted || done.CompletedAt == nil {
		t.Errorf("status = %s completedAt = %v", done.Status, done.CompletedAt)
	}
	if got := f.salesOrder(so.ID).Status; got != model.SOPicked {
		t.Errorf("sales order status = %s, want %s", got, model.SOPicked)
	}

	_, err = f.picking.Complete(f.ctx, f.actor, p.ID)
	assertKind(t, err, KindInvalidState, "")
	_, err = f.picking.RecordPick(f.ctx, f.actor, detailAt(t, p, l1).ID, 1)
	assertKind(t, err, KindInvalidState, "")
	_, err = f.picking.Cancel(f.ctx, f.actor, p.ID)
	assertKind(t, err, KindInvalidState, "")
}

func TestPicking_CompleteWithUnpickedLinesIsReported(t *testing.T) {
	f, item, l1, _, dock := twoSlotStock(t)
	so := f.order(dock, orderLine{item, 50})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := f.picking.RecordPick(f.ctx, f.actor, detailAt(t, p, l1).ID, 40); err != nil {
		t.Fatalf("RecordPick: %v", err)
	}

	if _, err := f.picking.Complete(f.ctx, f.actor, p.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	ev, ok := f.events.last(event.ActionPickingCompleted)
	if !ok {
		t.Fatalf("no %s event", event.ActionPickingCompleted)
	}
	if got := ev.Data["unpicked_lines"]; got != 1 {
		t.Errorf("unpicked_lines = %v, want 1", got)
	}
}

func TestPicking_CancelRestoresPickedStock(t *testing.T) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 100)
	item := f.item("I1", "1.00")
	f.stock(item, l1, 50)
	so := f.order(dock, orderLine{item, 20})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := f.picking.RecordPick(f.ctx, f.actor, p.Details[0].ID, 15); err != nil {
		t.Fatalf("RecordPick: %v", err)
	}
	if got := f.quantityAt(item, l1); got != 35 {
		t.Fatalf("L1 quantity after pick = %d, want 35", got)
	}

	cancelled, err := f.picking.Cancel(f.ctx, f.actor, p.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != model.PickingCancelled || cancelled.CancelledAt == nil {
		t.Errorf("status = %s cancelledAt = %v", cancelled.Status, cancelled.CancelledAt)
	}
	if got := f.quantityAt(item, l1); got != 50 {
		t.Errorf("L1 quantity = %d, want 50", got)
	}
	if got := f.capacityOf(l1); got != 50 {
		t.Errorf("L1 capacity = %d, want 50", got)
	}
	order := f.salesOrder(so.ID)
	if order.Status != model.SOCancelled {
		t.Errorf("sales order status = %s, want %s", order.Status, model.SOCancelled)
	}
	if !strings.Contains(order.Notes, p.PickingNumber) {
		t.Errorf("notes = %q, want mention of %s", order.Notes, p.PickingNumber)
	}

	_, err = f.picking.Cancel(f.ctx, f.actor, p.ID)
	assertKind(t, err, KindInvalidState, "")
}

func TestPicking_CancelKeepsFifoAge(t *testing.T) {
	f, item, l1, l2, dock := twoSlotStock(t)
	before := f.lastUpdatedAt(item, l1)

	so := f.order(dock, orderLine{item, 10})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := f.picking.RecordPick(f.ctx, f.actor, detailAt(t, p, l1).ID, 5); err != nil {
		t.Fatalf("RecordPick: %v", err)
	}
	if _, err := f.picking.Cancel(f.ctx, f.actor, p.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if got := f.lastUpdatedAt(item, l1); !got.Equal(before) {
		t.Errorf("L1 last_updated = %v, want unchanged %v", got, before)
	}
	plan, err := f.picking.SuggestLocations(f.ctx, item.ID, 50)
	if err != nil {
		t.Fatalf("SuggestLocations: %v", err)
	}
	if len(plan) != 2 || plan[0].LocationID != l1.ID || plan[0].QuantityAllocated != 40 ||
		plan[1].LocationID != l2.ID || plan[1].QuantityAllocated != 10 {
		t.Errorf("plan after cancel = %+v, want 40 from L1 then 10 from L2", plan)
	}
}

func TestPicking_CancelIntoFullSlotRollsBack(t *testing.T) {
	f := newFixture(t)
	l1 := f.location("L1", model.LocationStorage, 100)
	dock := f.location("DOCK", model.LocationOther, 100)
	item := f.item("I1", "1.00")
	f.stock(item, l1, 50)
	so := f.order(dock, orderLine{item, 20})
	p, err := f.picking.Generate(f.ctx, f.actor, so.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := f.picking.RecordPick(f.ctx, f.actor, p.Details[0].ID, 15); err != nil {
		t.Fatalf("RecordPick: %v", err)
	}
	// the freed room is refilled before the cancel
	f.stock(item, l1, 65)

	_, err = f.picking.Cancel(f.ctx, f.actor, p.ID)
	assertKind(t, err, KindCapacityExceeded, "")
	if got := f.pickingByID(p.ID).Status; got != model.PickingInProgress {
		t.Errorf("picking status = %s, want %s", got, model.PickingInProgress)
	}
	if got := f.quantityAt(item, l1); got != 100 {
		t.Errorf("L1 quantity = %d, want 100", got)
	}

	f.stock(item, l1, -15)
	if _, err := f.picking.Cancel(f.ctx, f.actor, p.ID); err != nil {
		t.Fatalf("Cancel after making room: %v", err)
	}
	if got := f.capacityOf(l1); got != 100 {
		t.Errorf("L1 capacity = %d, want 100", got)
	}
}

func TestAllocate_SkipsTakenStock(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	candidates := []model.FifoCandidate{
		{LocationID: a, LocationCode: "A", Quantity: 10},
		{LocationID: b, LocationCode: "B", Quantity: 10},
	}

	plan, short := allocate(candidates, 12, map[uuid.UUID]int{a: 10})
	if short != 2 {
		t.Errorf("shortfall = %d, want 2", short)
	}
	if len(plan) != 1 || plan[0].LocationID != b || plan[0].QuantityAllocated != 10 {
		t.Errorf("plan = %+v, want 10 from B", plan)
	}

	plan, short = allocate(candidates, 5, nil)
	if short != 0 || len(plan) != 1 || plan[0].QuantityAllocated != 5 {
		t.Errorf("plan = %+v shortfall = %d, want 5 from A", plan, short)
	}
}
