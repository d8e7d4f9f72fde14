package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is the quantity still available for reservation.
type Product struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string          `gorm:"column:name;type:text;not null;index:idx_products_name"`
	Description *string         `gorm:"column:description;type:text"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;check:chk_products_price_positive,price > 0"`
	Stock       int             `gorm:"column:stock;not null;default:0;check:chk_products_stock_nonnegative,stock >= 0"`
	ImageURL    *string         `gorm:"column:image_url;type:text"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
