package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SalesOrderLineRequest struct {
	ItemID   uuid.UUID `json:"item_id" validate:"uuid_required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
	// UnitPrice overrides the item's standard price when set.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type CreateSalesOrderRequest struct {
	SONumber          string                  `json:"so_number" validate:"omitempty,max=50"`
	CustomerID        uuid.UUID               `json:"customer_id" validate:"uuid_required"`
	HoldingLocationID uuid.UUID               `json:"holding_location_id" validate:"uuid_required"`
	Notes             string                  `json:"notes" validate:"max=1000"`
	Lines             []SalesOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type CancelSalesOrderRequest struct {
	Reason string `json:"reason"`
}

// FulfillmentService drives a Sales Order through cancellation and shipment.
type FulfillmentService interface {
	CreateSalesOrder(ctx context.Context, actor model.Principal, req *CreateSalesOrderRequest) (*model.SalesOrder, error)
	GetSalesOrder(ctx context.Context, id uuid.UUID) (*model.SalesOrder, error)
	Cancel(ctx context.Context, actor model.Principal, salesOrderID uuid.UUID, reason string) (*model.SalesOrder, error)
	Ship(ctx context.Context, actor model.Principal, salesOrderID uuid.UUID) (*model.SalesOrder, error)
}

type fulfillmentService struct {
	db             *gorm.DB
	salesOrderRepo repository.SalesOrderRepository
	pickingRepo    repository.PickingRepository
	locationRepo   repository.LocationRepository
	items          repository.ItemRepository
	customers      repository.CustomerRepository
	ledger         LedgerService
	picking        PickingService
	audit          repository.AuditSink
	events         event.Publisher
	logger         *zap.Logger
	now            func() time.Time
}

func NewFulfillmentService(
	db *gorm.DB,
	salesOrderRepo repository.SalesOrderRepository,
	pickingRepo repository.PickingRepository,
	locationRepo repository.LocationRepository,
	items repository.ItemRepository,
	customers repository.CustomerRepository,
	ledger LedgerService,
	picking PickingService,
	audit repository.AuditSink,
	events event.Publisher,
	logger *zap.Logger,
) FulfillmentService {
	return &fulfillmentService{
		db:             db,
		salesOrderRepo: salesOrderRepo,
		pickingRepo:    pickingRepo,
		locationRepo:   locationRepo,
		items:          items,
		customers:      customers,
		ledger:         ledger,
		picking:        picking,
		audit:          audit,
		events:         orNopPublisher(events),
		logger:         orNop(logger),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func salesOrderNumber(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("SO-%s-%s", at.Format("20060102"), strings.ToUpper(suffix))
}

// CreateSalesOrder registers a pending order. Stock is not checked here;
// picking generation is the authoritative availability check.
func (s *fulfillmentService) CreateSalesOrder(ctx context.Context, actor model.Principal, req *CreateSalesOrderRequest) (order *model.SalesOrder, err error) {
	ctx, span := tracer.Start(ctx, "fulfillment.create_sales_order")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.Int("sales_order.lines", len(req.Lines)))

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// master data reads happen before the transaction opens
	if _, err := s.customers.FindByID(ctx, req.CustomerID); err != nil {
		return nil, translateDBError("customer", err)
	}
	holding, err := s.locationRepo.FindByID(s.db.WithContext(ctx), req.HoldingLocationID)
	if err != nil {
		return nil, translateDBError("holding location", err)
	}
	if holding.Category != model.LocationOther || !holding.IsActive {
		return nil, newError(KindValidation, CodeInvalidHoldingLocation,
			"location %s cannot hold shipments", holding.Code)
	}

	total := decimal.Zero
	details := make([]model.SalesOrderDetail, 0, len(req.Lines))
	for _, line := range req.Lines {
		item, err := s.items.FindByID(ctx, line.ItemID)
		if err != nil {
			return nil, translateDBError("item", err)
		}
		price := item.StandardPrice
		if line.UnitPrice != nil {
			if line.UnitPrice.IsNegative() {
				return nil, validationError("unit price of item %s must not be negative", item.Code)
			}
			price = *line.UnitPrice
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(lineTotal)

		detail := model.SalesOrderDetail{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: price,
			LineTotal: lineTotal,
		}
		detail.CreatedBy = actor.String()
		detail.UpdatedBy = actor.String()
		details = append(details, detail)
	}

	number := req.SONumber
	if number == "" {
		number = salesOrderNumber(s.now())
	}
	order = &model.SalesOrder{
		SONumber:          number,
		CustomerID:        req.CustomerID,
		HoldingLocationID: req.HoldingLocationID,
		Status:            model.SOPending,
		TotalAmount:       total,
		Notes:             req.Notes,
		Details:           details,
	}
	order.CreatedBy = actor.String()
	order.UpdatedBy = actor.String()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.salesOrderRepo.Create(tx, order); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return validationError("sales order number %s already exists", order.SONumber)
			}
			return translateDBError("sales order", err)
		}
		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditSalesOrderCreate,
			EntityType:  "sales_order",
			EntityID:    order.ID,
			Description: describe(actor, "created sales order %s", order.SONumber),
			After:       order.ToResponse(),
		})
	})
	if err != nil {
		return nil, translateDBError("sales order", err)
	}

	s.logger.Info("sales order created",
		zap.String("sales_order_id", order.ID.String()),
		zap.String("so_number", order.SONumber),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.publish(ctx, actor, event.ActionSalesOrderCreated, order,
		fmt.Sprintf("created sales order %s", order.SONumber), nil)
	return order, nil
}

func (s *fulfillmentService) GetSalesOrder(ctx context.Context, id uuid.UUID) (*model.SalesOrder, error) {
	order, err := s.salesOrderRepo.FindByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, translateDBError("sales order", err)
	}
	return order, nil
}

// Cancel cancels an order that has not started picking, or whose picking is still pending.
func (s *fulfillmentService) Cancel(ctx context.Context, actor model.Principal, salesOrderID uuid.UUID, reason string) (order *model.SalesOrder, err error) {
	ctx, span := tracer.Start(ctx, "fulfillment.cancel")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("sales_order.id", salesOrderID.String()))

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("cancellation reason is required")
	}
	if utf8.RuneCountInString(reason) > MaxCancelReasonLength {
		return nil, validationError("cancellation reason exceeds %d characters", MaxCancelReasonLength)
	}

	var cancelledPicking string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.salesOrderRepo.LockByID(tx, salesOrderID)
		if err != nil {
			return translateDBError("sales order", err)
		}
		live, err := s.pickingRepo.FindLiveBySalesOrder(tx, order.ID)
		if err != nil {
			return translateDBError("picking", err)
		}

		if live == nil {
			if order.Status != model.SOPending {
				return invalidState("sales order %s is %s and cannot be cancelled", order.SONumber, order.Status)
			}
		} else {
			if order.Status != model.SOInProgress || live.Status != model.PickingPending {
				return invalidState("sales order %s is %s with picking %s %s and cannot be cancelled",
					order.SONumber, order.Status, live.PickingNumber, live.Status)
			}
			picking, err := s.pickingRepo.LockByID(tx, live.ID)
			if err != nil {
				return translateDBError("picking", err)
			}
			if err := s.picking.CancelTx(tx, actor, picking); err != nil {
				return err
			}
			cancelledPicking = picking.PickingNumber
		}

		before := order.Status
		notes := appendNote(order.Notes, cancellationEntry(s.now(), actorName(actor), reason), MaxNotesLength)
		err = s.salesOrderRepo.UpdateFields(tx, order.ID, map[string]interface{}{
			"status":     model.SOCancelled,
			"notes":      notes,
			"updated_by": actor.String(),
		})
		if err != nil {
			return translateDBError("sales order", err)
		}
		order.Status = model.SOCancelled
		order.Notes = notes
		order.UpdatedBy = actor.String()

		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditSalesOrderCancel,
			EntityType:  "sales_order",
			EntityID:    order.ID,
			Description: describe(actor, "cancelled sales order %s", order.SONumber),
			Before:      map[string]interface{}{"status": before},
			After:       map[string]interface{}{"status": order.Status, "reason": reason},
		})
	})
	if err != nil {
		return nil, translateDBError("sales order", err)
	}

	s.logger.Info("sales order cancelled",
		zap.String("so_number", order.SONumber),
		zap.String("picking_number", cancelledPicking),
	)
	s.publish(ctx, actor, event.ActionSalesOrderCancelled, order,
		fmt.Sprintf("cancelled sales order %s", order.SONumber),
		map[string]interface{}{"reason": reason, "picking_number": cancelledPicking})
	return order, nil
}

// Ship consumes the order's quantities from its holding location.
func (s *fulfillmentService) Ship(ctx context.Context, actor model.Principal, salesOrderID uuid.UUID) (order *model.SalesOrder, err error) {
	ctx, span := tracer.Start(ctx, "fulfillment.ship")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(actorAttr(actor), attribute.String("sales_order.id", salesOrderID.String()))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.salesOrderRepo.LockByID(tx, salesOrderID)
		if err != nil {
			return translateDBError("sales order", err)
		}
		if order.Status != model.SOPicked {
			return invalidState("sales order %s is %s, expected %s", order.SONumber, order.Status, model.SOPicked)
		}

		required := order.RequiredByItem()
		itemIDs := make([]uuid.UUID, 0, len(required))
		for id := range required {
			itemIDs = append(itemIDs, id)
		}
		// stable lock order across concurrent shipments
		sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i].String() < itemIDs[j].String() })

		for _, itemID := range itemIDs {
			qty := required[itemID]
			record, err := s.ledger.LockRecordTx(tx, itemID, order.HoldingLocationID)
			if err != nil {
				return err
			}
			if record == nil || record.Status() != model.InventoryAvailable {
				return newError(KindInsufficientStock, CodeNoHoldingStock,
					"no stock of item %s at the holding location", itemID)
			}
			if record.Quantity < qty {
				return newError(KindInsufficientStock, "",
					"item %s: %d at the holding location, %d required", itemID, record.Quantity, qty)
			}
			if _, err := s.ledger.AdjustTx(tx, actor, itemID, order.HoldingLocationID, -qty); err != nil {
				return err
			}
		}

		now := s.now()
		err = s.salesOrderRepo.UpdateFields(tx, order.ID, map[string]interface{}{
			"status":     model.SOShipped,
			"shipped_at": now,
			"updated_by": actor.String(),
		})
		if err != nil {
			return translateDBError("sales order", err)
		}
		order.Status = model.SOShipped
		order.ShippedAt = &now
		order.UpdatedBy = actor.String()

		return s.audit.Record(tx, repository.AuditEntry{
			Actor:       actor,
			Action:      model.AuditSalesOrderShip,
			EntityType:  "sales_order",
			EntityID:    order.ID,
			Description: describe(actor, "shipped sales order %s", order.SONumber),
			Before:      map[string]interface{}{"status": model.SOPicked},
			After:       map[string]interface{}{"status": order.Status, "items": len(itemIDs)},
		})
	})
	if err != nil {
		return nil, translateDBError("sales order", err)
	}

	s.logger.Info("sales order shipped",
		zap.String("so_number", order.SONumber),
		zap.Int("lines", len(order.Details)),
	)
	s.publish(ctx, actor, event.ActionSalesOrderShipped, order,
		fmt.Sprintf("shipped sales order %s", order.SONumber), nil)
	return order, nil
}

func (s *fulfillmentService) publish(ctx context.Context, actor model.Principal, action string, order *model.SalesOrder, message string, extra map[string]interface{}) {
	data := map[string]interface{}{
		"so_number": order.SONumber,
		"status":    order.Status,
	}
	for k, v := range extra {
		data[k] = v
	}
	publish(ctx, s.events, s.logger, event.Event{
		Type:       event.TypeFulfillmentUpdate,
		Action:     action,
		EntityType: "sales_order",
		EntityID:   order.ID.String(),
		User:       actor,
		Message:    describe(actor, "%s", message),
		Data:       data,
		OccurredAt: s.now(),
	})
}
