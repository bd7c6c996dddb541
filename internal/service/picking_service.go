package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecordPickRequest is the body of a pick confirmation.
type RecordPickRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type PickingService interface {
	Generate(ctx context.Context, actor model.Principal, salesOrderID uuid.UUID) (*model.Picking, error)
	SuggestLocations(ctx context.Context, itemID uuid.UUID, quantity int) ([]model.LocationSuggestion, error)
	RecordPick(ctx context.Context, actor model.Principal, detailID uuid.UUID, quantity int) (*model.PickingDetail, error)
	Complete(ctx context.Context, actor model.Principal, pickingID uuid.UUID) (*model.Picking, error)
	Cancel(ctx context.Context, actor model.Principal, pickingID uuid.UUID) (*model.Picking, error)
	GetPicking(ctx context.Context, id uuid.UUID) (*model.Picking, error)

	// CancelTx restores picked stock and marks a locked picking cancelled.
	// The caller owns the Sales Order transition.
	CancelTx(tx *gorm.DB, actor model.Principal, picking *model.Picking) error
}

type pickingService struct {
	db             *gorm.DB
	pickingRepo    repository.PickingRepository
	salesOrderRepo repository.SalesOrderRepository
	ledger         LedgerService
	audit          repository.AuditSink
	events         event.Publisher
	logger         *zap.Logger
	now            func() time.Time
}

func NewPickingService(
	db *gorm.DB,
	pickingRepo repository.PickingRepository,
	salesOrderRepo repository.SalesOrderRepository,
	ledger LedgerService,
	audit repository.AuditSink,
	events event.Publisher,
	logger *zap.Logger,
) PickingService {
	return &pickingService{
		db:             db,
		pickingRepo:    pickingRepo,
		salesOrderRepo: salesOrderRepo,
		ledger:         ledger,
		audit:          audit,
		events:         orNopPublisher(events),
		logger:         orNop(logger),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

var storageCategory = model.LocationStorage

func pickingNumber(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("PCK-%s-%s", at.Format("20060102"), strings.ToUpper(suffix))
}

func (s *pickingService) SuggestLocations(ctx context.Context, itemID uuid.UUID, quantity int) (plan []model.LocationSuggestion, err error) {
	ctx, span := tracer.Start(ctx, "picking.suggest_locations")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.String("item.id", itemID.String()), attribute.Int("quantity", quantity))

	if quantity <= 0 {
		return nil, newError(KindValidation, CodeInvalidQuantity, "quantity must be positive, got %d", quantity)
	}
	candidates, err := s.ledger.FifoCandidates(ctx, itemID, &storageCategory, true)
	if err != nil {
		return nil, err
	}
	plan, shortfall := allocate(candidates, quantity, nil)
	if shortfall > 0 {
		return nil, newError(KindInsufficientStock, "",
			"item %s: %d available in storage, %d required", itemID, quantity-shortfall, quantity)
	}
	return plan, nil
}

// Generate allocates every line of a pending order from storage in FIFO order
// and creates the picking. Nothing is written unless all lines are covered.
func (s *pickingService) Generate(ctx context.Context, actor model.Principal, salesOrderID uuid.UUID) (picking *model.Picking, err error) {
	ctx, span := tracer.Start(ctx, "picking.generate")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("sales_order.id", salesOrderID.String()))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.salesOrderRepo.LockByID(tx, salesOrderID)
		if err != nil {
			return translateDBError("sales order", err)
		}
		live, err := s.pickingRepo.FindLiveBySalesOrder(tx, order.ID)
		if err != nil {
			return translateDBError("picking", err)
		}
		if live != nil {
			return newError(KindInvalidState, CodePickingAlreadyExists,
				"sales order %s already has picking %s", order.SONumber, live.PickingNumber)
		}
		if order.Status != model.SOPending {
			return invalidState("sales order %s is %s, expected %s", order.SONumber, order.Status, model.SOPending)
		}
		if len(order.Details) == 0 {
			return validationError("sales order %s has no lines", order.SONumber)
		}

		candidatesByItem := make(map[uuid.UUID][]model.FifoCandidate)
		taken := make(map[uuid.UUID]map[uuid.UUID]int)
		var details []model.PickingDetail
		for _, line := range order.Details {
			candidates, ok := candidatesByItem[line.ItemID]
			if !ok {
				candidates, err = s.ledger.FifoCandidatesTx(tx, line.ItemID, &storageCategory, true)
				if err != nil {
					return err
				}
				candidatesByItem[line.ItemID] = candidates
				taken[line.ItemID] = make(map[uuid.UUID]int)
			}

			plan, shortfall := allocate(candidates, line.Quantity, taken[line.ItemID])
			if shortfall > 0 {
				return newError(KindInsufficientStock, "",
					"item %s: %d available in storage, %d required", line.ItemID, line.Quantity-shortfall, line.Quantity)
			}
			for _, slice := range plan {
				taken[line.ItemID][slice.LocationID] += slice.QuantityAllocated
				detail := model.PickingDetail{
					SalesOrderDetailID: line.ID,
					ItemID:             line.ItemID,
					LocationID:         slice.LocationID,
					QuantityRequired:   slice.QuantityAllocated,
				}
				detail.CreatedBy = actor.String()
				detail.UpdatedBy = actor.String()
				details = append(details, detail)
			}
		}

		picking = &model.Picking{
			PickingNumber: pickingNumber(s.now()),
			SalesOrderID:  order.ID,
			Status:        model.PickingPending,
			Details:       details,
		}
		picking.CreatedBy = actor.String()
		picking.UpdatedBy = actor.String()
		if err := s.pickingRepo.Create(tx, picking); err != nil {
			return translateDBError("picking", err)
		}

		err = s.salesOrderRepo.UpdateFields(tx, order.ID, map[string]interface{}{
			"status":     model.SOInProgress,
			"updated_by": actor.String(),
		})
		if err != nil {
			return translateDBError("sales order", err)
		}

		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditPickingGenerate,
			EntityType:  "picking",
			EntityID:    picking.ID,
			Description: describe(actor, "generated picking %s for %s", picking.PickingNumber, order.SONumber),
			After:       picking.ToResponse(),
		})
	})
	if err != nil {
		return nil, translateDBError("picking", err)
	}

	span.SetAttributes(attribute.String("picking.number", picking.PickingNumber), attribute.Int("picking.details", len(picking.Details)))
	s.logger.Info("picking generated",
		zap.String("picking_id", picking.ID.String()),
		zap.String("picking_number", picking.PickingNumber),
		zap.String("sales_order_id", salesOrderID.String()),
		zap.Int("details", len(picking.Details)),
	)
	s.publish(ctx, actor, event.ActionPickingGenerated, picking,
		fmt.Sprintf("generated picking %s", picking.PickingNumber), nil)
	return picking, nil
}

// RecordPick confirms quantity taken for one detail and decrements the ledger at its location.
func (s *pickingService) RecordPick(ctx context.Context, actor model.Principal, detailID uuid.UUID, quantity int) (detail *model.PickingDetail, err error) {
	ctx, span := tracer.Start(ctx, "picking.record_pick")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("picking_detail.id", detailID.String()), attribute.Int("quantity", quantity))

	if quantity <= 0 {
		return nil, newError(KindValidation, CodeInvalidQuantity, "pick quantity must be positive, got %d", quantity)
	}

	var picking *model.Picking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		detail, err = s.pickingRepo.LockDetail(tx, detailID)
		if err != nil {
			return translateDBError("picking detail", err)
		}
		picking, err = s.pickingRepo.LockByID(tx, detail.PickingID)
		if err != nil {
			return translateDBError("picking", err)
		}
		if picking.Status == model.PickingCompleted || picking.Status == model.PickingCancelled {
			return invalidState("picking %s is %s", picking.PickingNumber, picking.Status)
		}
		if remaining := detail.RemainingQuantity(); quantity > remaining {
			return newError(KindValidation, CodeInvalidQuantity,
				"pick quantity %d exceeds remaining %d", quantity, remaining)
		}

		if _, err := s.ledger.AdjustTx(tx, actor, detail.ItemID, detail.LocationID, -quantity); err != nil {
			return err
		}

		before := detail.QuantityPicked
		detail.QuantityPicked += quantity
		detail.UpdatedBy = actor.String()
		if err := s.pickingRepo.UpdateDetailPicked(tx, detail.ID, detail.QuantityPicked, actor.String()); err != nil {
			return translateDBError("picking detail", err)
		}
		for i := range picking.Details {
			if picking.Details[i].ID == detail.ID {
				picking.Details[i].QuantityPicked = detail.QuantityPicked
			}
		}

		if picking.Status == model.PickingPending {
			picking.Status = model.PickingInProgress
			if err := s.pickingRepo.UpdateStatus(tx, picking, actor.String()); err != nil {
				return translateDBError("picking", err)
			}
		}

		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditPickingPick,
			EntityType:  "picking_detail",
			EntityID:    detail.ID,
			Description: describe(actor, "picked %d on %s", quantity, picking.PickingNumber),
			Before:      map[string]int{"quantity_picked": before},
			After:       map[string]int{"quantity_picked": detail.QuantityPicked},
		})
	})
	if err != nil {
		return nil, translateDBError("picking detail", err)
	}

	s.logger.Info("pick recorded",
		zap.String("picking_number", picking.PickingNumber),
		zap.String("detail_id", detail.ID.String()),
		zap.Int("quantity", quantity),
		zap.Int("picked", detail.QuantityPicked),
		zap.Int("required", detail.QuantityRequired),
	)
	s.publish(ctx, actor, event.ActionPickRecorded, picking,
		fmt.Sprintf("picked %d units on %s", quantity, picking.PickingNumber),
		map[string]interface{}{"detail": detail.ToResponse()})
	return detail, nil
}

// lockWithOrder locks the picking's sales order before the picking itself,
// keeping the lock order used everywhere else.
func (s *pickingService) lockWithOrder(tx *gorm.DB, pickingID uuid.UUID) (*model.SalesOrder, *model.Picking, error) {
	unlocked, err := s.pickingRepo.FindByID(tx, pickingID)
	if err != nil {
		return nil, nil, translateDBError("picking", err)
	}
	order, err := s.salesOrderRepo.LockByID(tx, unlocked.SalesOrderID)
	if err != nil {
		return nil, nil, translateDBError("sales order", err)
	}
	picking, err := s.pickingRepo.LockByID(tx, pickingID)
	if err != nil {
		return nil, nil, translateDBError("picking", err)
	}
	return order, picking, nil
}

// Complete closes a picking that has at least one picked unit and marks the order picked.
// Lines with nothing picked are allowed but reported.
func (s *pickingService) Complete(ctx context.Context, actor model.Principal, pickingID uuid.UUID) (picking *model.Picking, err error) {
	ctx, span := tracer.Start(ctx, "picking.complete")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("picking.id", pickingID.String()))

	var unpicked, outstanding int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, locked, err := s.lockWithOrder(tx, pickingID)
		if err != nil {
			return err
		}
		picking = locked
		if picking.Status != model.PickingPending && picking.Status != model.PickingInProgress {
			return invalidState("picking %s is %s", picking.PickingNumber, picking.Status)
		}
		anyPicked := false
		for _, d := range picking.Details {
			if d.QuantityPicked > 0 {
				anyPicked = true
			}
			if d.RemainingQuantity() > 0 {
				outstanding++
			}
		}
		if !anyPicked {
			return newError(KindInvalidState, CodeNothingPicked, "picking %s has nothing picked", picking.PickingNumber)
		}
		if order.Status != model.SOInProgress {
			return invalidState("sales order %s is %s, expected %s", order.SONumber, order.Status, model.SOInProgress)
		}
		unpicked = picking.UnpickedLines()

		before := picking.Status
		now := s.now()
		picking.Status = model.PickingCompleted
		picking.CompletedAt = &now
		if err := s.pickingRepo.UpdateStatus(tx, picking, actor.String()); err != nil {
			return translateDBError("picking", err)
		}
		err = s.salesOrderRepo.UpdateFields(tx, order.ID, map[string]interface{}{
			"status":     model.SOPicked,
			"updated_by": actor.String(),
		})
		if err != nil {
			return translateDBError("sales order", err)
		}

		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditPickingComplete,
			EntityType:  "picking",
			EntityID:    picking.ID,
			Description: describe(actor, "completed picking %s", picking.PickingNumber),
			Before:      map[string]interface{}{"status": before},
			After: map[string]interface{}{
				"status":             picking.Status,
				"unpicked_lines":     unpicked,
				"outstanding_lines":  outstanding,
				"completion_percent": picking.CompletionPercentage(),
			},
		})
	})
	if err != nil {
		return nil, translateDBError("picking", err)
	}

	if outstanding > 0 {
		span.AddEvent("completed_with_outstanding_lines", trace.WithAttributes(
			attribute.Int("unpicked_lines", unpicked),
			attribute.Int("outstanding_lines", outstanding),
		))
		s.logger.Warn("picking completed with outstanding lines",
			zap.String("picking_number", picking.PickingNumber),
			zap.Int("unpicked_lines", unpicked),
			zap.Int("outstanding_lines", outstanding),
			zap.Float64("completion_percent", picking.CompletionPercentage()),
		)
	} else {
		s.logger.Info("picking completed", zap.String("picking_number", picking.PickingNumber))
	}
	s.publish(ctx, actor, event.ActionPickingCompleted, picking,
		fmt.Sprintf("completed picking %s", picking.PickingNumber),
		map[string]interface{}{"unpicked_lines": unpicked, "outstanding_lines": outstanding})
	return picking, nil
}

// Cancel cancels a live picking, restores picked stock and cancels its sales order.
func (s *pickingService) Cancel(ctx context.Context, actor model.Principal, pickingID uuid.UUID) (picking *model.Picking, err error) {
	ctx, span := tracer.Start(ctx, "picking.cancel")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("picking.id", pickingID.String()))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, locked, err := s.lockWithOrder(tx, pickingID)
		if err != nil {
			return err
		}
		picking = locked
		if err := s.CancelTx(tx, actor, picking); err != nil {
			return err
		}
		entry := cancellationEntry(s.now(), actorName(actor), "picking "+picking.PickingNumber+" cancelled")
		err = s.salesOrderRepo.UpdateFields(tx, order.ID, map[string]interface{}{
			"status":     model.SOCancelled,
			"notes":      appendNote(order.Notes, entry, MaxNotesLength),
			"updated_by": actor.String(),
		})
		if err != nil {
			return translateDBError("sales order", err)
		}
		return nil
	})
	if err != nil {
		return nil, translateDBError("picking", err)
	}

	s.publishCancelled(ctx, actor, picking)
	return picking, nil
}

func (s *pickingService) CancelTx(tx *gorm.DB, actor model.Principal, picking *model.Picking) error {
	if picking.Status == model.PickingCompleted || picking.Status == model.PickingCancelled {
		return invalidState("picking %s is %s", picking.PickingNumber, picking.Status)
	}

	restored := 0
	for _, d := range picking.Details {
		if d.QuantityPicked <= 0 {
			continue
		}
		if _, err := s.ledger.RestoreTx(tx, actor, d.ItemID, d.LocationID, d.QuantityPicked); err != nil {
			return err
		}
		restored += d.QuantityPicked
	}

	before := picking.Status
	now := s.now()
	picking.Status = model.PickingCancelled
	picking.CancelledAt = &now
	if err := s.pickingRepo.UpdateStatus(tx, picking, actor.String()); err != nil {
		return translateDBError("picking", err)
	}

	s.logger.Info("picking cancelled",
		zap.String("picking_number", picking.PickingNumber),
		zap.Int("restored_units", restored),
	)
	return s.audit.Record(tx, repository.AuditEntry{
		Actor:       actor,
		Action:      model.AuditPickingCancel,
		EntityType:  "picking",
		EntityID:    picking.ID,
		Description: describe(actor, "cancelled picking %s", picking.PickingNumber),
		Before:      map[string]interface{}{"status": before},
		After:       map[string]interface{}{"status": picking.Status, "restored_units": restored},
	})
}

func (s *pickingService) GetPicking(ctx context.Context, id uuid.UUID) (*model.Picking, error) {
	picking, err := s.pickingRepo.FindByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, translateDBError("picking", err)
	}
	return picking, nil
}

func (s *pickingService) publishCancelled(ctx context.Context, actor model.Principal, picking *model.Picking) {
	s.publish(ctx, actor, event.ActionPickingCancelled, picking,
		fmt.Sprintf("cancelled picking %s", picking.PickingNumber), nil)
}

func (s *pickingService) publish(ctx context.Context, actor model.Principal, action string, picking *model.Picking, message string, extra map[string]interface{}) {
	data := map[string]interface{}{
		"picking_number":        picking.PickingNumber,
		"sales_order_id":        picking.SalesOrderID,
		"status":                picking.Status,
		"completion_percentage": picking.CompletionPercentage(),
	}
	for k, v := range extra {
		data[k] = v
	}
	publish(ctx, s.events, s.logger, event.Event{
		Type:       event.TypeFulfillmentUpdate,
		Action:     action,
		EntityType: "picking",
		EntityID:   picking.ID.String(),
		User:       actor,
		Message:    describe(actor, "%s", message),
		Data:       data,
		OccurredAt: s.now(),
	})
}
