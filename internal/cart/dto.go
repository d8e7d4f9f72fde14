package cart

import (
	"time"

	"github.com/angelmondragon/fastmart-backend/internal/catalog"
	"github.com/angelmondragon/fastmart-backend/pkg/db/models"
	"github.com/google/uuid"
)

// ItemDTO is a cart line with the product it reserves.
type ItemDTO struct {
	ID        int64              `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	ProductID int64              `json:"product_id"`
	Quantity  int                `json:"quantity"`
	Product   catalog.ProductDTO `json:"product"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewItemDTO maps a cart line loaded with its Product.
func NewItemDTO(item *models.CartItem) *ItemDTO {
	return &ItemDTO{
		ID:        item.ID,
		UserID:    item.UserID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Product:   catalog.NewProductDTO(&item.Product),
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}
