package model

import (
	"time"

	"github.com/google/uuid"
)

type InventoryStatus string

const (
	InventoryAvailable InventoryStatus = "AVAILABLE"
	InventoryEmpty     InventoryStatus = "EMPTY"
)

// InventoryRecord is the quantity of one item at one location.
// There is at most one record per (item, location); records are never deleted.
type InventoryRecord struct {
	BaseModel
	ItemID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_item_location" json:"item_id"`
	Item        *Item     `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	LocationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_item_location;index" json:"location_id"`
	Location    *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	Quantity    int       `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	LastUpdated time.Time `gorm:"not null;index" json:"last_updated"`
}

func (InventoryRecord) TableName() string {
	return "inventory_records"
}

// Status is EMPTY iff the quantity is zero.
func (r *InventoryRecord) Status() InventoryStatus {
	if r.Quantity > 0 {
		return InventoryAvailable
	}
	return InventoryEmpty
}

// InventoryResponse for API responses
type InventoryResponse struct {
	ID          uuid.UUID       `json:"id"`
	ItemID      uuid.UUID       `json:"item_id"`
	LocationID  uuid.UUID       `json:"location_id"`
	Quantity    int             `json:"quantity"`
	Status      InventoryStatus `json:"status"`
	LastUpdated time.Time       `json:"last_updated"`
}

// ToResponse converts InventoryRecord to InventoryResponse
func (r *InventoryRecord) ToResponse() InventoryResponse {
	return InventoryResponse{
		ID:          r.ID,
		ItemID:      r.ItemID,
		LocationID:  r.LocationID,
		Quantity:    r.Quantity,
		Status:      r.Status(),
		LastUpdated: r.LastUpdated,
	}
}

// FifoCandidate is one location holding an item, in consumption order.
type FifoCandidate struct {
	LocationID   uuid.UUID `json:"location_id"`
	LocationCode string    `json:"location_code"`
	Quantity     int       `json:"quantity"`
	LastUpdated  time.Time `json:"last_updated"`
}

// LocationSuggestion is one slice of an allocation plan.
type LocationSuggestion struct {
	LocationID        uuid.UUID `json:"location_id"`
	LocationCode      string    `json:"location_code"`
	QuantityAllocated int       `json:"quantity_allocated"`
	LocationAvailable int       `json:"location_available"`
}
