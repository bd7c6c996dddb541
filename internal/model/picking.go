package model

import (
	"time"

	"github.com/google/uuid"
)

type PickingStatus string

const (
	PickingPending    PickingStatus = "PENDING"
	PickingInProgress PickingStatus = "IN_PROGRESS"
	PickingCompleted  PickingStatus = "COMPLETED"
	PickingCancelled  PickingStatus = "CANCELLED"
)

type PickingDetailStatus string

const (
	DetailPending         PickingDetailStatus = "PENDING"
	DetailPartiallyPicked PickingDetailStatus = "PARTIALLY_PICKED"
	DetailCompleted       PickingDetailStatus = "COMPLETED"
)

// Picking is the fulfillment work-order for one Sales Order.
type Picking struct {
	BaseModel
	PickingNumber string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"picking_number"`
	SalesOrderID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"sales_order_id"`
	Status        PickingStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	Details       []PickingDetail `gorm:"foreignKey:PickingID" json:"details,omitempty"`
}

func (Picking) TableName() string {
	return "pickings"
}

// CompletionPercentage is picked / required over all details, 0..100.
func (p *Picking) CompletionPercentage() float64 {
	var required, picked int
	for _, d := range p.Details {
		required += d.QuantityRequired
		picked += d.QuantityPicked
	}
	if required == 0 {
		return 0
	}
	return float64(picked) * 100 / float64(required)
}

// UnpickedLines counts details with no progress at all.
func (p *Picking) UnpickedLines() int {
	n := 0
	for _, d := range p.Details {
		if d.QuantityPicked == 0 {
			n++
		}
	}
	return n
}

// PickingDetail is one line of a Picking, tied to one Sales Order line and one location.
type PickingDetail struct {
	BaseModel
	PickingID          uuid.UUID `gorm:"type:uuid;not null;index" json:"picking_id"`
	SalesOrderDetailID uuid.UUID `gorm:"type:uuid;not null;index" json:"sales_order_detail_id"`
	ItemID             uuid.UUID `gorm:"type:uuid;not null" json:"item_id"`
	LocationID         uuid.UUID `gorm:"type:uuid;not null" json:"location_id"`
	QuantityRequired   int       `gorm:"not null;check:quantity_required > 0" json:"quantity_required"`
	QuantityPicked     int       `gorm:"not null;default:0;check:quantity_picked >= 0" json:"quantity_picked"`
}

func (PickingDetail) TableName() string {
	return "picking_details"
}

func (d *PickingDetail) RemainingQuantity() int {
	return d.QuantityRequired - d.QuantityPicked
}

// Status is a pure function of picked and required quantities.
func (d *PickingDetail) Status() PickingDetailStatus {
	switch {
	case d.QuantityPicked <= 0:
		return DetailPending
	case d.QuantityPicked >= d.QuantityRequired:
		return DetailCompleted
	default:
		return DetailPartiallyPicked
	}
}

// PickingDetailResponse for API responses
type PickingDetailResponse struct {
	ID                 uuid.UUID           `json:"id"`
	SalesOrderDetailID uuid.UUID           `json:"sales_order_detail_id"`
	ItemID             uuid.UUID           `json:"item_id"`
	LocationID         uuid.UUID           `json:"location_id"`
	QuantityRequired   int                 `json:"quantity_required"`
	QuantityPicked     int                 `json:"quantity_picked"`
	RemainingQuantity  int                 `json:"remaining_quantity"`
	Status             PickingDetailStatus `json:"status"`
}

func (d *PickingDetail) ToResponse() PickingDetailResponse {
	return PickingDetailResponse{
		ID:                 d.ID,
		SalesOrderDetailID: d.SalesOrderDetailID,
		ItemID:             d.ItemID,
		LocationID:         d.LocationID,
		QuantityRequired:   d.QuantityRequired,
		QuantityPicked:     d.QuantityPicked,
		RemainingQuantity:  d.RemainingQuantity(),
		Status:             d.Status(),
	}
}

// PickingResponse for API responses
type PickingResponse struct {
	ID                   uuid.UUID               `json:"id"`
	PickingNumber        string                  `json:"picking_number"`
	SalesOrderID         uuid.UUID               `json:"sales_order_id"`
	Status               PickingStatus           `json:"status"`
	CompletionPercentage float64                 `json:"completion_percentage"`
	CompletedAt          *time.Time              `json:"completed_at,omitempty"`
	CancelledAt          *time.Time              `json:"cancelled_at,omitempty"`
	Details              []PickingDetailResponse `json:"details"`
	CreatedAt            time.Time               `json:"created_at"`
	CreatedBy            string                  `json:"created_by"`
}

func (p *Picking) ToResponse() PickingResponse {
	details := make([]PickingDetailResponse, len(p.Details))
	for i := range p.Details {
		details[i] = p.Details[i].ToResponse()
	}
	return PickingResponse{
		ID:                   p.ID,
		PickingNumber:        p.PickingNumber,
		SalesOrderID:         p.SalesOrderID,
		Status:               p.Status,
		CompletionPercentage: p.CompletionPercentage(),
		CompletedAt:          p.CompletedAt,
		CancelledAt:          p.CancelledAt,
		Details:              details,
		CreatedAt:            p.CreatedAt,
		CreatedBy:            p.CreatedBy,
	}
}
