package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditInventoryAdjust   AuditAction = "inventory.adjust"
	AuditInventoryMove     AuditAction = "inventory.move"
	AuditCapacityRecompute AuditAction = "location.recompute"
	AuditLocationCreate    AuditAction = "location.create"
	AuditLocationRetire    AuditAction = "location.retire"
	AuditPickingGenerate   AuditAction = "picking.generate"
	AuditPickingPick       AuditAction = "picking.pick"
	AuditPickingComplete   AuditAction = "picking.complete"
	AuditPickingCancel     AuditAction = "picking.cancel"
	AuditSalesOrderCreate  AuditAction = "sales_order.create"
	AuditSalesOrderCancel  AuditAction = "sales_order.cancel"
	AuditSalesOrderShip    AuditAction = "sales_order.ship"
)

// AuditLog is one entry of the audit trail, written in the same transaction as the change.
type AuditLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Action      AuditAction    `gorm:"type:varchar(50);index" json:"action"`
	EntityType  string         `gorm:"type:varchar(50);index" json:"entity_type"`
	EntityID    uuid.UUID      `gorm:"type:uuid;index" json:"entity_id"`
	ActorID     string         `gorm:"type:varchar(255)" json:"actor_id"`
	ActorName   string         `gorm:"type:varchar(255)" json:"actor_name"`
	Description string         `gorm:"type:varchar(255)" json:"description"`
	BeforeData  datatypes.JSON `json:"before_data"`
	AfterData   datatypes.JSON `json:"after_data"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Item{}, &Customer{}, &Location{}, &InventoryRecord{},
		&SalesOrder{}, &SalesOrderDetail{}, &Picking{}, &PickingDetail{}, &AuditLog{},
	}
}
