package service

import (
	"context"
	"errors"
	"time"

	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdjustRequest is the payload of a manual stock correction or receipt.
type AdjustRequest struct {
	ItemID     uuid.UUID `json:"item_id" validate:"uuid_required"`
	LocationID uuid.UUID `json:"location_id" validate:"uuid_required"`
	Delta      int       `json:"delta" validate:"required"`
}

// MoveRequest transfers stock of one item between two locations.
type MoveRequest struct {
	ItemID         uuid.UUID `json:"item_id" validate:"uuid_required"`
	FromLocationID uuid.UUID `json:"from_location_id" validate:"uuid_required"`
	ToLocationID   uuid.UUID `json:"to_location_id" validate:"uuid_required"`
	Quantity       int       `json:"quantity" validate:"required,gt=0"`
}

// LedgerService is the only writer of InventoryRecord.
type LedgerService interface {
	GetAvailable(ctx context.Context, itemID uuid.UUID, category *model.LocationCategory) (int, error)
	FifoCandidates(ctx context.Context, itemID uuid.UUID, category *model.LocationCategory, excludeEmpty bool) ([]model.FifoCandidate, error)
	Adjust(ctx context.Context, actor model.Principal, itemID, locationID uuid.UUID, delta int) (*model.InventoryRecord, error)
	Move(ctx context.Context, actor model.Principal, itemID, fromID, toID uuid.UUID, quantity int) error

	AdjustTx(tx *gorm.DB, actor model.Principal, itemID, locationID uuid.UUID, delta int) (*model.InventoryRecord, error)
	// RestoreTx puts picked units back without changing the record's FIFO age.
	RestoreTx(tx *gorm.DB, actor model.Principal, itemID, locationID uuid.UUID, quantity int) (*model.InventoryRecord, error)
	FifoCandidatesTx(tx *gorm.DB, itemID uuid.UUID, category *model.LocationCategory, excludeEmpty bool) ([]model.FifoCandidate, error)
	// LockRecordTx returns nil, nil when no record exists for the pair.
	LockRecordTx(tx *gorm.DB, itemID, locationID uuid.UUID) (*model.InventoryRecord, error)
}

type ledgerService struct {
	db            *gorm.DB
	inventoryRepo repository.InventoryRepository
	capacity      CapacityService
	audit         repository.AuditSink
	events        event.Publisher
	logger        *zap.Logger
	now           func() time.Time
}

func NewLedgerService(
	db *gorm.DB,
	inventoryRepo repository.InventoryRepository,
	capacity CapacityService,
	audit repository.AuditSink,
	events event.Publisher,
	logger *zap.Logger,
) LedgerService {
	return &ledgerService{
		db:            db,
		inventoryRepo: inventoryRepo,
		capacity:      capacity,
		audit:         audit,
		events:        orNopPublisher(events),
		logger:        orNop(logger),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *ledgerService) GetAvailable(ctx context.Context, itemID uuid.UUID, category *model.LocationCategory) (int, error) {
	total, err := s.inventoryRepo.SumAvailable(s.db.WithContext(ctx), itemID, category)
	if err != nil {
		return 0, translateDBError("inventory", err)
	}
	return total, nil
}

func (s *ledgerService) FifoCandidates(ctx context.Context, itemID uuid.UUID, category *model.LocationCategory, excludeEmpty bool) ([]model.FifoCandidate, error) {
	return s.FifoCandidatesTx(s.db.WithContext(ctx), itemID, category, excludeEmpty)
}

func (s *ledgerService) FifoCandidatesTx(tx *gorm.DB, itemID uuid.UUID, category *model.LocationCategory, excludeEmpty bool) ([]model.FifoCandidate, error) {
	candidates, err := s.inventoryRepo.FifoCandidates(tx, itemID, category, excludeEmpty)
	if err != nil {
		return nil, translateDBError("inventory", err)
	}
	return candidates, nil
}

func (s *ledgerService) LockRecordTx(tx *gorm.DB, itemID, locationID uuid.UUID) (*model.InventoryRecord, error) {
	record, err := s.inventoryRepo.LockByItemAndLocation(tx, itemID, locationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateDBError("inventory", err)
	}
	return record, nil
}

func (s *ledgerService) Adjust(ctx context.Context, actor model.Principal, itemID, locationID uuid.UUID, delta int) (record *model.InventoryRecord, err error) {
	ctx, span := tracer.Start(ctx, "ledger.adjust")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(
		actorAttr(actor),
		attribute.String("item.id", itemID.String()),
		attribute.String("location.id", locationID.String()),
		attribute.Int("delta", delta),
	)

	var before int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = s.AdjustTx(tx, actor, itemID, locationID, delta)
		if err == nil {
			before = record.Quantity - delta
		}
		return err
	})
	if err != nil {
		return nil, translateDBError("inventory", err)
	}

	publish(ctx, s.events, s.logger, event.Event{
		Type:       event.TypeStockUpdate,
		Action:     event.ActionStockAdjusted,
		EntityType: "inventory",
		EntityID:   record.ID.String(),
		User:       actor,
		Message:    describe(actor, "adjusted stock by %d", delta),
		Data: map[string]interface{}{
			"item_id":      itemID,
			"location_id":  locationID,
			"old_quantity": before,
			"new_quantity": record.Quantity,
		},
		OccurredAt: s.now(),
	})
	return record, nil
}

// AdjustTx applies delta to the (item, location) record and moves the location's
// capacity by the same amount, inside tx.
func (s *ledgerService) AdjustTx(tx *gorm.DB, actor model.Principal, itemID, locationID uuid.UUID, delta int) (*model.InventoryRecord, error) {
	return s.applyDelta(tx, actor, itemID, locationID, delta, delta > 0)
}

func (s *ledgerService) RestoreTx(tx *gorm.DB, actor model.Principal, itemID, locationID uuid.UUID, quantity int) (*model.InventoryRecord, error) {
	if quantity <= 0 {
		return nil, newError(KindValidation, CodeInvalidQuantity, "restored quantity must be positive, got %d", quantity)
	}
	return s.applyDelta(tx, actor, itemID, locationID, quantity, false)
}

// applyDelta refreshes last_updated only when touchAge is set. A record that
// does not exist yet always gets the current time.
func (s *ledgerService) applyDelta(tx *gorm.DB, actor model.Principal, itemID, locationID uuid.UUID, delta int, touchAge bool) (*model.InventoryRecord, error) {
	if delta == 0 {
		return nil, newError(KindValidation, CodeInvalidQuantity, "adjustment delta must not be zero")
	}

	record, err := s.LockRecordTx(tx, itemID, locationID)
	if err != nil {
		return nil, err
	}

	current := 0
	if record != nil {
		current = record.Quantity
	}
	next := current + delta
	if next < 0 {
		return nil, newError(KindInsufficientStock, "",
			"item %s at location %s holds %d, cannot remove %d", itemID, locationID, current, -delta)
	}

	if delta > 0 {
		if _, err := s.capacity.Reserve(tx, actor, locationID, delta); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.capacity.Release(tx, actor, locationID, -delta); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if record == nil {
		record = &model.InventoryRecord{
			ItemID:      itemID,
			LocationID:  locationID,
			Quantity:    next,
			LastUpdated: now,
		}
		record.CreatedBy = actor.String()
		record.UpdatedBy = actor.String()
		if err := s.inventoryRepo.Create(tx, record); err != nil {
			return nil, translateDBError("inventory", err)
		}
	} else {
		var lastUpdated *time.Time
		if touchAge {
			lastUpdated = &now
			record.LastUpdated = now
		}
		if err := s.inventoryRepo.UpdateQuantity(tx, record.ID, next, lastUpdated, actor.String()); err != nil {
			return nil, translateDBError("inventory", err)
		}
		record.Quantity = next
		record.UpdatedBy = actor.String()
	}

	err = s.audit.Record(tx, repository.AuditEntry{
		Actor:       actor,
		Action:      model.AuditInventoryAdjust,
		EntityType:  "inventory",
		EntityID:    record.ID,
		Description: describe(actor, "adjusted item %s at %s by %d", itemID, locationID, delta),
		Before:      map[string]int{"quantity": current},
		After:       map[string]int{"quantity": next},
	})
	if err != nil {
		return nil, translateDBError("audit log", err)
	}

	s.logger.Debug("inventory adjusted",
		zap.String("item_id", itemID.String()),
		zap.String("location_id", locationID.String()),
		zap.Int("delta", delta),
		zap.Int("quantity", next),
	)
	return record, nil
}

// Move transfers quantity of an item between locations atomically.
// Both records are locked and destination capacity is checked before the
// source is touched.
func (s *ledgerService) Move(ctx context.Context, actor model.Principal, itemID, fromID, toID uuid.UUID, quantity int) (err error) {
	ctx, span := tracer.Start(ctx, "ledger.move")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(
		actorAttr(actor),
		attribute.String("item.id", itemID.String()),
		attribute.String("location.from", fromID.String()),
		attribute.String("location.to", toID.String()),
		attribute.Int("quantity", quantity),
	)

	if quantity <= 0 {
		return newError(KindValidation, CodeInvalidQuantity, "move quantity must be positive, got %d", quantity)
	}
	if fromID == toID {
		return validationError("source and destination location must differ")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// records before locations, lower location id first
		first, second := fromID, toID
		if second.String() < first.String() {
			first, second = second, first
		}
		for _, locationID := range []uuid.UUID{first, second} {
			if _, err := s.LockRecordTx(tx, itemID, locationID); err != nil {
				return err
			}
		}
		if _, err := s.capacity.Check(tx, toID, quantity); err != nil {
			return err
		}
		source, err := s.AdjustTx(tx, actor, itemID, fromID, -quantity)
		if err != nil {
			return err
		}
		if _, err := s.AdjustTx(tx, actor, itemID, toID, quantity); err != nil {
			return err
		}
		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditInventoryMove,
			EntityType:  "inventory",
			EntityID:    source.ID,
			Description: describe(actor, "moved %d of item %s", quantity, itemID),
			Before:      map[string]interface{}{"location_id": fromID},
			After:       map[string]interface{}{"location_id": toID, "quantity": quantity},
		})
	})
	if err != nil {
		return translateDBError("inventory", err)
	}

	s.logger.Info("stock moved",
		zap.String("item_id", itemID.String()),
		zap.String("from", fromID.String()),
		zap.String("to", toID.String()),
		zap.Int("quantity", quantity),
	)
	publish(ctx, s.events, s.logger, event.Event{
		Type:       event.TypeStockUpdate,
		Action:     event.ActionStockMoved,
		EntityType: "item",
		EntityID:   itemID.String(),
		User:       actor,
		Message:    describe(actor, "moved %d units", quantity),
		Data: map[string]interface{}{
			"from_location_id": fromID,
			"to_location_id":   toID,
			"quantity":         quantity,
		},
		OccurredAt: s.now(),
	})
	return nil
}
