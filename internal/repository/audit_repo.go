package repository

import (
	"encoding/json"

	"go-warehouse-fulfillment/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry describes one change; Before and After are marshalled to JSON.
type AuditEntry struct {
	Actor       model.Principal
	Action      model.AuditAction
	EntityType  string
	EntityID    uuid.UUID
	Description string
	Before      any
	After       any
}

// AuditSink records audit entries inside the caller's transaction.
type AuditSink interface {
	Record(tx *gorm.DB, entry AuditEntry) error
	FindByEntity(tx *gorm.DB, entityType string, entityID uuid.UUID) ([]model.AuditLog, error)
}

type auditRepo struct{}

func NewAuditRepo() AuditSink {
	return &auditRepo{}
}

func (r *auditRepo) Record(tx *gorm.DB, entry AuditEntry) error {
	entity := model.AuditLog{
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		ActorID:     entry.Actor.String(),
		ActorName:   entry.Actor.Name,
		Description: entry.Description,
		BeforeData:  toJSON(entry.Before),
		AfterData:   toJSON(entry.After),
	}
	return tx.Create(&entity).Error
}

func (r *auditRepo) FindByEntity(tx *gorm.DB, entityType string, entityID uuid.UUID) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := tx.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

// toJSON keeps a JSON null for empty snapshots so jsonb columns accept the value.
func toJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
