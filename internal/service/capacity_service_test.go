package service

import (
	"errors"
	"testing"

	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/model"

	"gorm.io/gorm"
)

func TestCapacity_ReserveRejectsOverflow(t *testing.T) {
	f := newFixture(t)
	loc := f.location("A-01", model.LocationStorage, 10)
	item := f.item("ITM-1", "1.00")

	f.stock(item, loc, 8)
	_, err := f.ledger.Adjust(f.ctx, f.actor, item.ID, loc.ID, 3)
	assertKind(t, err, KindCapacityExceeded, "")
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("errors.Is(err, ErrCapacityExceeded) = false")
	}

	if got := f.capacityOf(loc); got != 8 {
		t.Errorf("capacity = %d, want 8", got)
	}
	if got := f.quantityAt(item, loc); got != 8 {
		t.Errorf("quantity = %d, want 8", got)
	}
}

func TestCapacity_FillToExactlyMax(t *testing.T) {
	f := newFixture(t)
	loc := f.location("A-01", model.LocationStorage, 10)
	item := f.item("ITM-1", "1.00")

	f.stock(item, loc, 10)
	got, err := f.capacity.GetLocation(f.ctx, loc.ID)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if !got.IsFull() {
		t.Errorf("IsFull() = false at %d/%d", got.CurrentCapacity, got.MaxCapacity)
	}
	if !got.IsNearFull(f.capacity.NearFullThreshold()) {
		t.Errorf("IsNearFull() = false at full capacity")
	}
}

func TestCapacity_ReleaseClampsAtZero(t *testing.T) {
	f := newFixture(t)
	loc := f.location("A-01", model.LocationStorage, 10)

	var got int
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		got, err = f.capacity.Release(tx, f.actor, loc.ID, 5)
		return err
	})
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got != 0 {
		t.Errorf("Release returned %d, want 0", got)
	}
	if c := f.capacityOf(loc); c != 0 {
		t.Errorf("capacity = %d, want 0", c)
	}
}

func TestCapacity_ReserveRejectsNonPositiveDelta(t *testing.T) {
	f := newFixture(t)
	loc := f.location("A-01", model.LocationStorage, 10)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.capacity.Reserve(tx, f.actor, loc.ID, 0)
		return err
	})
	assertKind(t, err, KindValidation, CodeInvalidQuantity)
}

func TestCapacity_InactiveLocationRejectsStock(t *testing.T) {
	f := newFixture(t)
	loc := f.location("A-01", model.LocationStorage, 10)
	item := f.item("ITM-1", "1.00")

	if err := f.db.Model(&model.Location{}).Where("id = ?", loc.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := f.ledger.Adjust(f.ctx, f.actor, item.ID, loc.ID, 1)
	assertKind(t, err, KindInvalidState, CodeLocationInactive)
	if got := f.quantityAt(item, loc); got != 0 {
		t.Errorf("quantity = %d, want 0", got)
	}
}

func TestCapacity_RecomputeRepairsDrift(t *testing.T) {
	f := newFixture(t)
	loc := f.location("A-01", model.LocationStorage, 100)
	item := f.item("ITM-1", "1.00")
	f.stock(item, loc, 20)

	if err := f.db.Model(&model.Location{}).Where("id = ?", loc.ID).Update("current_capacity", 55).Error; err != nil {
		t.Fatalf("inject drift: %v", err)
	}

	got, err := f.capacity.Recompute(f.ctx, f.actor, loc.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if got != 20 || f.capacityOf(loc) != 20 {
		t.Errorf("capacity = %d (stored %d), want 20", got, f.capacityOf(loc))
	}
	if _, ok := f.events.last(event.ActionCapacityRepaired); !ok {
		t.Errorf("no %s event published", event.ActionCapacityRepaired)
	}

	logs, err := f.audit.FindByEntity(f.db, "location", loc.ID)
	if err != nil {
		t.Fatalf("FindByEntity: %v", err)
	}
	var recomputes int
	for _, l := range logs {
		if l.Action == model.AuditCapacityRecompute {
			recomputes++
		}
	}
	if recomputes != 1 {
		t.Errorf("recompute audit entries = %d, want 1", recomputes)
	}
}

func TestCapacity_RecomputeAllCountsRepairs(t *testing.T) {
	f := newFixture(t)
	a := f.location("A-01", model.LocationStorage, 100)
	b := f.location("A-02", model.LocationStorage, 100)
	f.location("A-03", model.LocationStorage, 100)
	item := f.item("ITM-1", "1.00")
	f.stock(item, a, 10)
	f.stock(item, b, 10)

	f.db.Model(&model.Location{}).Where("id IN ?", []interface{}{a.ID, b.ID}).Update("current_capacity", 0)

	repaired, err := f.capacity.RecomputeAll(f.ctx, model.SystemPrincipal)
	if err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	if repaired != 2 {
		t.Errorf("repaired = %d, want 2", repaired)
	}

	repaired, err = f.capacity.RecomputeAll(f.ctx, model.SystemPrincipal)
	if err != nil {
		t.Fatalf("second RecomputeAll: %v", err)
	}
	if repaired != 0 {
		t.Errorf("second pass repaired = %d, want 0", repaired)
	}
}

func TestCapacity_RetireRequiresEmptyLocation(t *testing.T) {
	f := newFixture(t)
	loc := f.location("A-01", model.LocationStorage, 100)
	other := f.location("A-02", model.LocationStorage, 100)
	item := f.item("ITM-1", "1.00")
	f.stock(item, loc, 5)

	err := f.capacity.Retire(f.ctx, f.actor, loc.ID)
	assertKind(t, err, KindInvalidState, CodeLocationNotEmpty)

	f.stock(item, loc, -5)
	if err := f.capacity.Retire(f.ctx, f.actor, loc.ID); err != nil {
		t.Fatalf("Retire: %v", err)
	}

	locations, err := f.capacity.ListLocations(f.ctx, nil)
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locations) != 1 || locations[0].ID != other.ID {
		t.Errorf("ListLocations = %d locations, want only %s", len(locations), other.Code)
	}

	_, err = f.ledger.Adjust(f.ctx, f.actor, item.ID, loc.ID, 1)
	assertKind(t, err, KindNotFound, "")
}

func TestCapacity_CreateLocationValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.capacity.CreateLocation(f.ctx, f.actor, &CreateLocationRequest{Code: "X", Category: model.LocationStorage})
	assertKind(t, err, KindValidation, "")

	_, err = f.capacity.CreateLocation(f.ctx, f.actor, &CreateLocationRequest{Code: "X", Category: "BIN", MaxCapacity: 5})
	assertKind(t, err, KindValidation, "")

	storage := model.LocationStorage
	f.location("S-1", model.LocationStorage, 5)
	f.location("O-1", model.LocationOther, 5)
	locations, err := f.capacity.ListLocations(f.ctx, &storage)
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locations) != 1 || locations[0].Code != "S-1" {
		t.Errorf("storage locations = %+v, want only S-1", locations)
	}
}

func TestCapacity_DuplicateCodeIsValidationError(t *testing.T) {
	f := newFixture(t)
	f.location("A-01", model.LocationStorage, 5)

	_, err := f.capacity.CreateLocation(f.ctx, f.actor, &CreateLocationRequest{
		Code: "A-01", Category: model.LocationStorage, MaxCapacity: 5,
	})
	assertKind(t, err, KindValidation, "")
}
