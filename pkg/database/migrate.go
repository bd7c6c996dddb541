package database

import (
	"go-warehouse-fulfillment/internal/model"

	"gorm.io/gorm"
)

// Migrate creates or updates every table of the fulfillment schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.AllModels()...)
}
