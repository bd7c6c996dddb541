package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateLocationRequest is the payload for registering a location.
type CreateLocationRequest struct {
	Code        string                 `json:"code" validate:"required,nonblank,max=50"`
	Name        string                 `json:"name" validate:"max=255"`
	Category    model.LocationCategory `json:"category" validate:"required,oneof=STORAGE OTHER"`
	MaxCapacity int                    `json:"max_capacity" validate:"required,gt=0"`
}

// CapacityService owns Location.CurrentCapacity.
// The Tx methods join the caller's transaction and lock the location row.
type CapacityService interface {
	CreateLocation(ctx context.Context, actor model.Principal, req *CreateLocationRequest) (*model.Location, error)
	ListLocations(ctx context.Context, category *model.LocationCategory) ([]model.Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*model.Location, error)
	Retire(ctx context.Context, actor model.Principal, id uuid.UUID) error
	Recompute(ctx context.Context, actor model.Principal, id uuid.UUID) (int, error)
	RecomputeAll(ctx context.Context, actor model.Principal) (int, error)
	NearFullThreshold() float64

	Reserve(tx *gorm.DB, actor model.Principal, locationID uuid.UUID, delta int) (int, error)
	Release(tx *gorm.DB, actor model.Principal, locationID uuid.UUID, delta int) (int, error)
	Check(tx *gorm.DB, locationID uuid.UUID, delta int) (*model.Location, error)
}

type capacityService struct {
	db            *gorm.DB
	locationRepo  repository.LocationRepository
	inventoryRepo repository.InventoryRepository
	audit         repository.AuditSink
	events        event.Publisher
	logger        *zap.Logger
	nearFull      float64
}

func NewCapacityService(
	db *gorm.DB,
	locationRepo repository.LocationRepository,
	inventoryRepo repository.InventoryRepository,
	audit repository.AuditSink,
	events event.Publisher,
	logger *zap.Logger,
	nearFullThreshold float64,
) CapacityService {
	if nearFullThreshold <= 0 || nearFullThreshold > 1 {
		nearFullThreshold = model.DefaultNearFullThreshold
	}
	return &capacityService{
		db:            db,
		locationRepo:  locationRepo,
		inventoryRepo: inventoryRepo,
		audit:         audit,
		events:        orNopPublisher(events),
		logger:        orNop(logger),
		nearFull:      nearFullThreshold,
	}
}

func (s *capacityService) NearFullThreshold() float64 {
	return s.nearFull
}

func (s *capacityService) CreateLocation(ctx context.Context, actor model.Principal, req *CreateLocationRequest) (location *model.Location, err error) {
	ctx, span := tracer.Start(ctx, "capacity.create_location")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("location.code", req.Code))

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	location = &model.Location{
		Code:        req.Code,
		Name:        req.Name,
		Category:    req.Category,
		MaxCapacity: req.MaxCapacity,
		IsActive:    true,
	}
	location.CreatedBy = actor.String()
	location.UpdatedBy = actor.String()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.locationRepo.Create(tx, location); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return validationError("location code %s already exists", location.Code)
			}
			return translateDBError("location", err)
		}
		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditLocationCreate,
			EntityType:  "location",
			EntityID:    location.ID,
			Description: describe(actor, "created location %s", location.Code),
			After:       location.ToResponse(s.nearFull),
		})
	})
	if err != nil {
		return nil, translateDBError("location", err)
	}

	s.logger.Info("location created",
		zap.String("location_id", location.ID.String()),
		zap.String("code", location.Code),
		zap.String("category", string(location.Category)),
	)
	publish(ctx, s.events, s.logger, event.Event{
		Type:       event.TypeStockUpdate,
		Action:     event.ActionLocationCreated,
		EntityType: "location",
		EntityID:   location.ID.String(),
		User:       actor,
		Message:    describe(actor, "created location '%s'", location.Code),
		Data:       map[string]interface{}{"location": location.ToResponse(s.nearFull)},
		OccurredAt: time.Now().UTC(),
	})
	return location, nil
}

func (s *capacityService) ListLocations(ctx context.Context, category *model.LocationCategory) ([]model.Location, error) {
	locations, err := s.locationRepo.FindAll(s.db.WithContext(ctx), category)
	if err != nil {
		return nil, translateDBError("location", err)
	}
	return locations, nil
}

func (s *capacityService) GetLocation(ctx context.Context, id uuid.UUID) (*model.Location, error) {
	location, err := s.locationRepo.FindByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, translateDBError("location", err)
	}
	return location, nil
}

// Retire soft-deletes an empty location.
func (s *capacityService) Retire(ctx context.Context, actor model.Principal, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "capacity.retire")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("location.id", id.String()))

	var code string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		location, err := s.locationRepo.LockByID(tx, id)
		if err != nil {
			return translateDBError("location", err)
		}
		held, err := s.inventoryRepo.SumByLocation(tx, id)
		if err != nil {
			return translateDBError("inventory", err)
		}
		if location.CurrentCapacity != 0 || held != 0 {
			return newError(KindInvalidState, CodeLocationNotEmpty,
				"location %s still holds %d units", location.Code, held)
		}
		if err := s.locationRepo.SoftDelete(tx, id, actor.String()); err != nil {
			return translateDBError("location", err)
		}
		code = location.Code
		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditLocationRetire,
			EntityType:  "location",
			EntityID:    id,
			Description: describe(actor, "retired location %s", location.Code),
			Before:      location.ToResponse(s.nearFull),
		})
	})
	if err != nil {
		return translateDBError("location", err)
	}

	s.logger.Info("location retired", zap.String("location_id", id.String()), zap.String("code", code))
	publish(ctx, s.events, s.logger, event.Event{
		Type:       event.TypeStockUpdate,
		Action:     event.ActionLocationRetired,
		EntityType: "location",
		EntityID:   id.String(),
		User:       actor,
		Message:    describe(actor, "retired location '%s'", code),
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// Recompute re-derives the capacity of one location from the ledger.
func (s *capacityService) Recompute(ctx context.Context, actor model.Principal, id uuid.UUID) (capacity int, err error) {
	ctx, span := tracer.Start(ctx, "capacity.recompute")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("location.id", id.String()))

	var repaired bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		capacity, repaired, err = s.recomputeTx(tx, actor, id)
		return err
	})
	if err != nil {
		return 0, translateDBError("location", err)
	}
	span.SetAttributes(attribute.Int("location.capacity", capacity), attribute.Bool("capacity.repaired", repaired))
	if repaired {
		s.publishRepair(ctx, actor, id, capacity)
	}
	return capacity, nil
}

// RecomputeAll repairs drift on every active location and returns how many were corrected.
func (s *capacityService) RecomputeAll(ctx context.Context, actor model.Principal) (repairedCount int, err error) {
	ctx, span := tracer.Start(ctx, "capacity.recompute_all")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor))

	locations, err := s.locationRepo.FindAll(s.db.WithContext(ctx), nil)
	if err != nil {
		return 0, translateDBError("location", err)
	}

	// one transaction per location
	for _, loc := range locations {
		var (
			capacity int
			repaired bool
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			capacity, repaired, err = s.recomputeTx(tx, actor, loc.ID)
			return err
		})
		if err != nil {
			return repairedCount, translateDBError("location", err)
		}
		if repaired {
			repairedCount++
			s.publishRepair(ctx, actor, loc.ID, capacity)
		}
	}

	span.SetAttributes(attribute.Int("locations.scanned", len(locations)), attribute.Int("locations.repaired", repairedCount))
	s.logger.Info("capacity drift scan finished",
		zap.Int("locations", len(locations)),
		zap.Int("repaired", repairedCount),
	)
	return repairedCount, nil
}

func (s *capacityService) recomputeTx(tx *gorm.DB, actor model.Principal, id uuid.UUID) (int, bool, error) {
	location, err := s.locationRepo.LockByID(tx, id)
	if err != nil {
		return 0, false, translateDBError("location", err)
	}
	held, err := s.inventoryRepo.SumByLocation(tx, id)
	if err != nil {
		return 0, false, translateDBError("inventory", err)
	}
	if held == location.CurrentCapacity {
		return held, false, nil
	}

	s.logger.Warn("capacity drift repaired",
		zap.String("location_id", id.String()),
		zap.String("code", location.Code),
		zap.Int("stored", location.CurrentCapacity),
		zap.Int("ledger", held),
	)
	if err := s.locationRepo.UpdateCapacity(tx, id, held, actor.String()); err != nil {
		return 0, false, translateDBError("location", err)
	}
	err = s.audit.Record(tx, repository.AuditEntry{
		Actor:       actor,
		Action:      model.AuditCapacityRecompute,
		EntityType:  "location",
		EntityID:    id,
		Description: describe(actor, "recomputed capacity of %s", location.Code),
		Before:      map[string]int{"current_capacity": location.CurrentCapacity},
		After:       map[string]int{"current_capacity": held},
	})
	if err != nil {
		return 0, false, err
	}
	return held, true, nil
}

func (s *capacityService) publishRepair(ctx context.Context, actor model.Principal, id uuid.UUID, capacity int) {
	publish(ctx, s.events, s.logger, event.Event{
		Type:       event.TypeStockUpdate,
		Action:     event.ActionCapacityRepaired,
		EntityType: "location",
		EntityID:   id.String(),
		User:       actor,
		Message:    fmt.Sprintf("capacity of location %s reset to %d", id, capacity),
		Data:       map[string]interface{}{"current_capacity": capacity},
		OccurredAt: time.Now().UTC(),
	})
}

// lockActive locks the location and rejects inactive or retired ones.
func (s *capacityService) lockActive(tx *gorm.DB, locationID uuid.UUID) (*model.Location, error) {
	location, err := s.locationRepo.LockByID(tx, locationID)
	if err != nil {
		return nil, translateDBError("location", err)
	}
	if !location.IsActive {
		return nil, newError(KindInvalidState, CodeLocationInactive, "location %s is inactive", location.Code)
	}
	return location, nil
}

func (s *capacityService) Check(tx *gorm.DB, locationID uuid.UUID, delta int) (*model.Location, error) {
	if delta <= 0 {
		return nil, newError(KindValidation, CodeInvalidQuantity, "capacity delta must be positive, got %d", delta)
	}
	location, err := s.lockActive(tx, locationID)
	if err != nil {
		return nil, err
	}
	if location.CurrentCapacity+delta > location.MaxCapacity {
		return nil, newError(KindCapacityExceeded, "",
			"location %s cannot take %d more units (%d of %d used)",
			location.Code, delta, location.CurrentCapacity, location.MaxCapacity)
	}
	return location, nil
}

func (s *capacityService) Reserve(tx *gorm.DB, actor model.Principal, locationID uuid.UUID, delta int) (int, error) {
	location, err := s.Check(tx, locationID, delta)
	if err != nil {
		return 0, err
	}
	next := location.CurrentCapacity + delta
	if err := s.locationRepo.UpdateCapacity(tx, locationID, next, actor.String()); err != nil {
		return 0, translateDBError("location", err)
	}
	return next, nil
}

// Release frees delta units; drift below zero is clamped and left for Recompute.
func (s *capacityService) Release(tx *gorm.DB, actor model.Principal, locationID uuid.UUID, delta int) (int, error) {
	if delta <= 0 {
		return 0, newError(KindValidation, CodeInvalidQuantity, "capacity delta must be positive, got %d", delta)
	}
	location, err := s.locationRepo.LockByID(tx, locationID)
	if err != nil {
		return 0, translateDBError("location", err)
	}
	next := location.CurrentCapacity - delta
	if next < 0 {
		s.logger.Warn("capacity release below zero, clamping",
			zap.String("location_id", locationID.String()),
			zap.String("code", location.Code),
			zap.Int("current", location.CurrentCapacity),
			zap.Int("delta", delta),
		)
		next = 0
	}
	if err := s.locationRepo.UpdateCapacity(tx, locationID, next, actor.String()); err != nil {
		return 0, translateDBError("location", err)
	}
	return next, nil
}
