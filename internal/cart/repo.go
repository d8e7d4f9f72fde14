package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/fastmart-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence operations for cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) locked(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// LockLine loads the user's line for productID with a row lock.
func (r *Repository) LockLine(ctx context.Context, userID uuid.UUID, productID int64) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.locked(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Take(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// LockByID loads a line owned by userID with a row lock. Lines owned by someone
// else are reported as not found.
func (r *Repository) LockByID(ctx context.Context, id int64, userID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.locked(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// LockAllForUser loads every line of the user's cart with row locks.
func (r *Repository) LockAllForUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.locked(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Create inserts the line without touching the referenced product.
func (r *Repository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

// SetQuantity overwrites the quantity of a line.
func (r *Repository) SetQuantity(ctx context.Context, id int64, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()}).Error
}

// Repoint moves a line to another product with a new quantity.
func (r *Repository) Repoint(ctx context.Context, id int64, productID int64, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"product_id": productID,
			"quantity":   quantity,
			"updated_at": time.Now().UTC(),
		}).Error
}

// Delete removes a line owned by userID and returns the affected row count.
func (r *Repository) Delete(ctx context.Context, id int64, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// DeleteAllForUser empties the user's cart.
func (r *Repository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// GetWithProduct loads a line and its product in one joined query.
func (r *Repository) GetWithProduct(ctx context.Context, id int64) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Joins("Product").
		Where("cart_items.id = ?", id).
		Take(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListWithProducts returns the user's lines with products attached by a single JOIN.
func (r *Repository) ListWithProducts(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Joins("Product").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
