package inventory

import (
	"context"
	"time"

	"github.com/angelmondragon/fastmart-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository issues the conditional stock updates. Every method is a single
// statement so it can run inside a caller's transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// DecrementIfAvailable subtracts qty from the product's stock only when enough
// stock remains. It reports whether a row was updated.
func (r *Repository) DecrementIfAvailable(ctx context.Context, productID int64, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Increment adds qty back to the product's stock. It reports whether the product exists.
func (r *Repository) Increment(ctx context.Context, productID int64, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Exists reports whether a product row is present.
func (r *Repository) Exists(ctx context.Context, productID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Stock returns the current stock for the product or gorm.ErrRecordNotFound.
func (r *Repository) Stock(ctx context.Context, productID int64) (int, error) {
	var stock []int
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Pluck("stock", &stock).Error; err != nil {
		return 0, err
	}
	if len(stock) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return stock[0], nil
}
