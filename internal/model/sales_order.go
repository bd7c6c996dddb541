package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SalesOrderStatus string

const (
	SOPending    SalesOrderStatus = "PENDING"
	SOInProgress SalesOrderStatus = "IN_PROGRESS"
	SOPicked     SalesOrderStatus = "PICKED"
	SOShipped    SalesOrderStatus = "SHIPPED"
	SOCancelled  SalesOrderStatus = "CANCELLED"
)

// SalesOrder is the customer demand header.
// HoldingLocationID must reference an OTHER-category location; shipment consumes stock there.
type SalesOrder struct {
	BaseModel
	SONumber          string             `gorm:"type:varchar(50);uniqueIndex;not null" json:"so_number"`
	CustomerID        uuid.UUID          `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer          *Customer          `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	HoldingLocationID uuid.UUID          `gorm:"type:uuid;not null" json:"holding_location_id"`
	Status            SalesOrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount       decimal.Decimal    `gorm:"type:decimal(14,2);not null;default:0" json:"total_amount"`
	Notes             string             `gorm:"type:text" json:"notes"`
	ShippedAt         *time.Time         `json:"shipped_at,omitempty"`
	Details           []SalesOrderDetail `gorm:"foreignKey:SalesOrderID" json:"details,omitempty"`
}

func (SalesOrder) TableName() string {
	return "sales_orders"
}

// SalesOrderDetail is one ordered line.
type SalesOrderDetail struct {
	BaseModel
	SalesOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"sales_order_id"`
	ItemID       uuid.UUID       `gorm:"type:uuid;not null" json:"item_id"`
	Quantity     int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"unit_price"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"line_total"`
}

func (SalesOrderDetail) TableName() string {
	return "sales_order_details"
}

// RequiredByItem sums ordered quantities per item across lines.
func (so *SalesOrder) RequiredByItem() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(so.Details))
	for _, d := range so.Details {
		out[d.ItemID] += d.Quantity
	}
	return out
}

// SalesOrderResponse for API responses
type SalesOrderResponse struct {
	ID                uuid.UUID          `json:"id"`
	SONumber          string             `json:"so_number"`
	CustomerID        uuid.UUID          `json:"customer_id"`
	HoldingLocationID uuid.UUID          `json:"holding_location_id"`
	Status            SalesOrderStatus   `json:"status"`
	TotalAmount       decimal.Decimal    `json:"total_amount"`
	Notes             string             `json:"notes"`
	ShippedAt         *time.Time         `json:"shipped_at,omitempty"`
	Details           []SalesOrderDetail `json:"details"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	CreatedBy         string             `json:"created_by"`
	UpdatedBy         string             `json:"updated_by"`
}

func (so *SalesOrder) ToResponse() SalesOrderResponse {
	return SalesOrderResponse{
		ID:                so.ID,
		SONumber:          so.SONumber,
		CustomerID:        so.CustomerID,
		HoldingLocationID: so.HoldingLocationID,
		Status:            so.Status,
		TotalAmount:       so.TotalAmount,
		Notes:             so.Notes,
		ShippedAt:         so.ShippedAt,
		Details:           so.Details,
		CreatedAt:         so.CreatedAt,
		UpdatedAt:         so.UpdatedAt,
		CreatedBy:         so.CreatedBy,
		UpdatedBy:         so.UpdatedBy,
	}
}
