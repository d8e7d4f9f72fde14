package cart

import (
	"context"

	"github.com/angelmondragon/fastmart-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	LockLine(ctx context.Context, userID uuid.UUID, productID int64) (*models.CartItem, error)
	LockByID(ctx context.Context, id int64, userID uuid.UUID) (*models.CartItem, error)
	LockAllForUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	SetQuantity(ctx context.Context, id int64, quantity int) error
	Repoint(ctx context.Context, id int64, productID int64, quantity int) error
	Delete(ctx context.Context, id int64, userID uuid.UUID) (int64, error)
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	GetWithProduct(ctx context.Context, id int64) (*models.CartItem, error)
	ListWithProducts(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

// Reserver is the slice of the inventory service the cart composes with.
type Reserver interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, productID int64, delta int) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID int64, amount int) error
}
