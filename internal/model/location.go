package model

import (
	"time"

	"github.com/google/uuid"
)

type LocationCategory string

const (
	LocationStorage LocationCategory = "STORAGE"
	LocationOther   LocationCategory = "OTHER"
)

// DefaultNearFullThreshold is the fill ratio at which a location counts as near full.
const DefaultNearFullThreshold = 0.9

// Location is a physical storage slot or a non-storage holding area.
// CurrentCapacity is owned by the capacity tracker and always equals the sum of
// inventory quantities held at the location.
type Location struct {
	BaseModel
	Code            string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"code" validate:"required,max=50"`
	Name            string           `gorm:"type:varchar(255)" json:"name"`
	Category        LocationCategory `gorm:"type:varchar(20);not null;index" json:"category" validate:"required,oneof=STORAGE OTHER"`
	MaxCapacity     int              `gorm:"not null;check:max_capacity > 0" json:"max_capacity" validate:"required,gt=0"`
	CurrentCapacity int              `gorm:"not null;default:0;check:current_capacity >= 0" json:"current_capacity"`
	IsActive        bool             `gorm:"default:true" json:"is_active"`
}

func (Location) TableName() string {
	return "locations"
}

// IsFull is derived from the counters, never stored.
func (l *Location) IsFull() bool {
	return l.CurrentCapacity >= l.MaxCapacity
}

// IsNearFull reports whether the fill ratio reached threshold (0..1).
func (l *Location) IsNearFull(threshold float64) bool {
	if l.MaxCapacity <= 0 {
		return true
	}
	return float64(l.CurrentCapacity)/float64(l.MaxCapacity) >= threshold
}

// FreeCapacity returns how many units still fit.
func (l *Location) FreeCapacity() int {
	free := l.MaxCapacity - l.CurrentCapacity
	if free < 0 {
		return 0
	}
	return free
}

// LocationResponse for API responses
type LocationResponse struct {
	ID              uuid.UUID        `json:"id"`
	Code            string           `json:"code"`
	Name            string           `json:"name"`
	Category        LocationCategory `json:"category"`
	MaxCapacity     int              `json:"max_capacity"`
	CurrentCapacity int              `json:"current_capacity"`
	FreeCapacity    int              `json:"free_capacity"`
	IsActive        bool             `json:"is_active"`
	IsFull          bool             `json:"is_full"`
	IsNearFull      bool             `json:"is_near_full"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ToResponse converts Location to LocationResponse
func (l *Location) ToResponse(nearFullThreshold float64) LocationResponse {
	return LocationResponse{
		ID:              l.ID,
		Code:            l.Code,
		Name:            l.Name,
		Category:        l.Category,
		MaxCapacity:     l.MaxCapacity,
		CurrentCapacity: l.CurrentCapacity,
		FreeCapacity:    l.FreeCapacity(),
		IsActive:        l.IsActive,
		IsFull:          l.IsFull(),
		IsNearFull:      l.IsNearFull(nearFullThreshold),
		UpdatedAt:       l.UpdatedAt,
	}
}
