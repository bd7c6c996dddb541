package model

import "github.com/shopspring/decimal"

// Item is read-only master data for the fulfillment core.
type Item struct {
	BaseModel
	Code          string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Unit          string          `gorm:"type:varchar(20)" json:"unit"`
	StandardPrice decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"standard_price"`
}

func (Item) TableName() string {
	return "items"
}

// Customer is read-only master data for the fulfillment core.
type Customer struct {
	BaseModel
	Code     string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

func (Customer) TableName() string {
	return "customers"
}
