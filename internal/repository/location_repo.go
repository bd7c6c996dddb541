package repository

import (
	"go-warehouse-fulfillment/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LocationRepository interface {
	Create(tx *gorm.DB, location *model.Location) error
	FindAll(tx *gorm.DB, category *model.LocationCategory) ([]model.Location, error)
	FindByID(tx *gorm.DB, id uuid.UUID) (*model.Location, error)
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.Location, error)
	UpdateCapacity(tx *gorm.DB, id uuid.UUID, capacity int, updatedBy string) error
	SoftDelete(tx *gorm.DB, id uuid.UUID, deletedBy string) error
}

type locationRepo struct{}

func NewLocationRepo() LocationRepository {
	return &locationRepo{}
}

func (r *locationRepo) Create(tx *gorm.DB, location *model.Location) error {
	return tx.Create(location).Error
}

func (r *locationRepo) FindAll(tx *gorm.DB, category *model.LocationCategory) ([]model.Location, error) {
	var locations []model.Location
	query := tx.Order("code ASC")
	if category != nil {
		query = query.Where("category = ?", *category)
	}
	err := query.Find(&locations).Error
	return locations, err
}

func (r *locationRepo) FindByID(tx *gorm.DB, id uuid.UUID) (*model.Location, error) {
	var location model.Location
	if err := tx.First(&location, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

// LockByID reads the location row with SELECT ... FOR UPDATE.
func (r *locationRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.Location, error) {
	var location model.Location
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&location, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *locationRepo) UpdateCapacity(tx *gorm.DB, id uuid.UUID, capacity int, updatedBy string) error {
	return tx.Model(&model.Location{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_capacity": capacity,
			"updated_by":       updatedBy,
		}).Error
}

func (r *locationRepo) SoftDelete(tx *gorm.DB, id uuid.UUID, deletedBy string) error {
	return tx.Model(&model.Location{}).Where("id = ?", id).Updates(map[string]interface{}{
		"deleted_at": gorm.Expr("CURRENT_TIMESTAMP"),
		"deleted_by": deletedBy,
		"is_active":  false,
	}).Error
}
