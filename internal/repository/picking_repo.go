package repository

import (
	"errors"

	"go-warehouse-fulfillment/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PickingRepository interface {
	Create(tx *gorm.DB, picking *model.Picking) error
	FindByID(tx *gorm.DB, id uuid.UUID) (*model.Picking, error)
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.Picking, error)
	// FindLiveBySalesOrder returns nil, nil when the order has no live picking.
	FindLiveBySalesOrder(tx *gorm.DB, salesOrderID uuid.UUID) (*model.Picking, error)
	UpdateStatus(tx *gorm.DB, picking *model.Picking, updatedBy string) error

	LockDetail(tx *gorm.DB, detailID uuid.UUID) (*model.PickingDetail, error)
	UpdateDetailPicked(tx *gorm.DB, detailID uuid.UUID, picked int, updatedBy string) error
}

type pickingRepo struct{}

func NewPickingRepo() PickingRepository {
	return &pickingRepo{}
}

// Create inserts the picking together with its details.
func (r *pickingRepo) Create(tx *gorm.DB, picking *model.Picking) error {
	return tx.Create(picking).Error
}

func (r *pickingRepo) FindByID(tx *gorm.DB, id uuid.UUID) (*model.Picking, error) {
	var picking model.Picking
	if err := tx.First(&picking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.loadDetails(tx, &picking); err != nil {
		return nil, err
	}
	return &picking, nil
}

// LockByID locks the picking header. Details are loaded with a plain read;
// pick updates lock their own detail row.
func (r *pickingRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.Picking, error) {
	var picking model.Picking
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&picking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.loadDetails(tx, &picking); err != nil {
		return nil, err
	}
	return &picking, nil
}

func (r *pickingRepo) loadDetails(tx *gorm.DB, picking *model.Picking) error {
	return tx.Where("picking_id = ?", picking.ID).
		Order("created_at ASC, id ASC").
		Find(&picking.Details).Error
}

func (r *pickingRepo) FindLiveBySalesOrder(tx *gorm.DB, salesOrderID uuid.UUID) (*model.Picking, error) {
	var picking model.Picking
	err := tx.Where("sales_order_id = ? AND status <> ?", salesOrderID, model.PickingCancelled).
		Order("created_at DESC").
		First(&picking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(tx, &picking); err != nil {
		return nil, err
	}
	return &picking, nil
}

func (r *pickingRepo) UpdateStatus(tx *gorm.DB, picking *model.Picking, updatedBy string) error {
	return tx.Model(&model.Picking{}).
		Where("id = ?", picking.ID).
		Updates(map[string]interface{}{
			"status":       picking.Status,
			"completed_at": picking.CompletedAt,
			"cancelled_at": picking.CancelledAt,
			"updated_by":   updatedBy,
		}).Error
}

func (r *pickingRepo) LockDetail(tx *gorm.DB, detailID uuid.UUID) (*model.PickingDetail, error) {
	var detail model.PickingDetail
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&detail, "id = ?", detailID).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *pickingRepo) UpdateDetailPicked(tx *gorm.DB, detailID uuid.UUID, picked int, updatedBy string) error {
	return tx.Model(&model.PickingDetail{}).
		Where("id = ?", detailID).
		Updates(map[string]interface{}{
			"quantity_picked": picked,
			"updated_by":      updatedBy,
		}).Error
}
