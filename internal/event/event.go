package event

import (
	"context"
	"errors"
	"time"

	"go-warehouse-fulfillment/internal/model"
)

// Event types published after a fulfillment transaction commits.
const (
	TypeStockUpdate       = "stock_update"
	TypeFulfillmentUpdate = "fulfillment_update"
)

// Actions carried by events.
const (
	ActionStockAdjusted       = "stock_adjusted"
	ActionStockMoved          = "stock_moved"
	ActionCapacityRepaired    = "capacity_repaired"
	ActionLocationCreated     = "location_created"
	ActionLocationRetired     = "location_retired"
	ActionPickingGenerated    = "picking_generated"
	ActionPickRecorded        = "pick_recorded"
	ActionPickingCompleted    = "picking_completed"
	ActionPickingCancelled    = "picking_cancelled"
	ActionSalesOrderCreated   = "sales_order_created"
	ActionSalesOrderCancelled = "sales_order_cancelled"
	ActionSalesOrderShipped   = "sales_order_shipped"
)

// Event is the payload pushed to websocket clients and the message bus.
type Event struct {
	Type       string                 `json:"type"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	User       model.Principal        `json:"user"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher delivers committed events. Implementations must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var err error
	for _, p := range m {
		if p == nil {
			continue
		}
		err = errors.Join(err, p.Publish(ctx, ev))
	}
	return err
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
