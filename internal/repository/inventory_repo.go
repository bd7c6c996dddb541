package repository

import (
	"time"

	"go-warehouse-fulfillment/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	Create(tx *gorm.DB, record *model.InventoryRecord) error
	LockByItemAndLocation(tx *gorm.DB, itemID, locationID uuid.UUID) (*model.InventoryRecord, error)
	UpdateQuantity(tx *gorm.DB, id uuid.UUID, quantity int, lastUpdated *time.Time, updatedBy string) error

	// Ledger projections. Only records at active, non-retired locations count.
	SumAvailable(tx *gorm.DB, itemID uuid.UUID, category *model.LocationCategory) (int, error)
	FifoCandidates(tx *gorm.DB, itemID uuid.UUID, category *model.LocationCategory, excludeEmpty bool) ([]model.FifoCandidate, error)

	// SumByLocation is the ledger-side value of a location's current capacity.
	SumByLocation(tx *gorm.DB, locationID uuid.UUID) (int, error)
}

type inventoryRepo struct{}

func NewInventoryRepo() InventoryRepository {
	return &inventoryRepo{}
}

func (r *inventoryRepo) Create(tx *gorm.DB, record *model.InventoryRecord) error {
	return tx.Create(record).Error
}

func (r *inventoryRepo) LockByItemAndLocation(tx *gorm.DB, itemID, locationID uuid.UUID) (*model.InventoryRecord, error) {
	var record model.InventoryRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record, "item_id = ? AND location_id = ?", itemID, locationID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateQuantity writes the new quantity; lastUpdated is only touched when given.
func (r *inventoryRepo) UpdateQuantity(tx *gorm.DB, id uuid.UUID, quantity int, lastUpdated *time.Time, updatedBy string) error {
	fields := map[string]interface{}{
		"quantity":   quantity,
		"updated_by": updatedBy,
	}
	if lastUpdated != nil {
		fields["last_updated"] = *lastUpdated
	}
	return tx.Model(&model.InventoryRecord{}).Where("id = ?", id).Updates(fields).Error
}

func (r *inventoryRepo) ledgerScope(tx *gorm.DB, itemID uuid.UUID, category *model.LocationCategory) *gorm.DB {
	query := tx.Table("inventory_records AS ir").
		Joins("JOIN locations AS l ON l.id = ir.location_id").
		Where("ir.item_id = ? AND ir.deleted_at IS NULL", itemID).
		Where("l.deleted_at IS NULL AND l.is_active = ?", true)
	if category != nil {
		query = query.Where("l.category = ?", *category)
	}
	return query
}

func (r *inventoryRepo) SumAvailable(tx *gorm.DB, itemID uuid.UUID, category *model.LocationCategory) (int, error) {
	var total int64
	err := r.ledgerScope(tx, itemID, category).
		Where("ir.quantity > 0").
		Select("COALESCE(SUM(ir.quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

// FifoCandidates orders by lastUpdated ascending so older stock is consumed first.
// Location code breaks ties to keep the order deterministic.
func (r *inventoryRepo) FifoCandidates(tx *gorm.DB, itemID uuid.UUID, category *model.LocationCategory, excludeEmpty bool) ([]model.FifoCandidate, error) {
	var candidates []model.FifoCandidate
	query := r.ledgerScope(tx, itemID, category).
		Select("ir.location_id AS location_id, l.code AS location_code, ir.quantity AS quantity, ir.last_updated AS last_updated")
	if excludeEmpty {
		query = query.Where("ir.quantity > 0")
	}
	err := query.Order("ir.last_updated ASC, l.code ASC").Scan(&candidates).Error
	return candidates, err
}

func (r *inventoryRepo) SumByLocation(tx *gorm.DB, locationID uuid.UUID) (int, error) {
	var total int64
	err := tx.Model(&model.InventoryRecord{}).
		Where("location_id = ?", locationID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}
