package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one reserved line in a user's cart. (UserID, ProductID) is unique.
type CartItem struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_cart_items_user_product,priority:1"`
	ProductID int64     `gorm:"column:product_id;not null;uniqueIndex:idx_cart_items_user_product,priority:2"`
	Quantity  int       `gorm:"column:quantity;not null;check:chk_cart_items_quantity_positive,quantity > 0"`
	Product   Product   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }
