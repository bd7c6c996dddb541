package repository

import (
	"go-warehouse-fulfillment/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SalesOrderRepository interface {
	Create(tx *gorm.DB, order *model.SalesOrder) error
	FindByID(tx *gorm.DB, id uuid.UUID) (*model.SalesOrder, error)
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.SalesOrder, error)
	UpdateFields(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
}

type salesOrderRepo struct{}

func NewSalesOrderRepo() SalesOrderRepository {
	return &salesOrderRepo{}
}

// Create inserts the order together with its details.
func (r *salesOrderRepo) Create(tx *gorm.DB, order *model.SalesOrder) error {
	return tx.Create(order).Error
}

func (r *salesOrderRepo) FindByID(tx *gorm.DB, id uuid.UUID) (*model.SalesOrder, error) {
	var order model.SalesOrder
	if err := tx.First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.loadDetails(tx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID locks the order header (SELECT ... FOR UPDATE) and reads its lines.
func (r *salesOrderRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.SalesOrder, error) {
	var order model.SalesOrder
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.loadDetails(tx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *salesOrderRepo) loadDetails(tx *gorm.DB, order *model.SalesOrder) error {
	return tx.Where("sales_order_id = ?", order.ID).
		Order("created_at ASC, id ASC").
		Find(&order.Details).Error
}

func (r *salesOrderRepo) UpdateFields(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	return tx.Model(&model.SalesOrder{}).Where("id = ?", id).Updates(fields).Error
}
