package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fastmart-backend/pkg/db"
	"github.com/angelmondragon/fastmart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fastmart-backend/pkg/errors"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrItemNotFound covers missing lines and lines owned by another user.
var ErrItemNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")

// Service manages a user's cart. Every mutation moves stock through the
// inventory service inside the same transaction as the cart row write.
type Service interface {
	AddItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*ItemDTO, error)
	UpdateItem(ctx context.Context, userID uuid.UUID, itemID int64, productID int64, quantity int) (*ItemDTO, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, itemID int64) error
	ListItems(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      CartRepository
	inventory Reserver
	tx        txRunner
	logg      *logger.Logger
}

// NewService constructs the cart service.
func NewService(repo CartRepository, inventory Reserver, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, inventory: inventory, tx: tx, logg: logg}, nil
}

// AddItem reserves quantity and merges it into the user's line for the product,
// creating the line when absent.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*ItemDTO, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	itemID, err := s.addOnce(ctx, userID, productID, quantity)
	if err != nil && db.IsUniqueViolation(err, "") {
		// A concurrent first add created the line; our transaction rolled back
		// its reservation, so a second attempt merges instead of inserting.
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"product_id": productID}), "cart line insert raced, retrying as merge")
		itemID, err = s.addOnce(ctx, userID, productID, quantity)
	}
	if err != nil {
		return nil, asServiceError(err, "add cart item")
	}
	return s.load(ctx, itemID)
}

func (s *service) addOnce(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (int64, error) {
	var itemID int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.LockLine(ctx, userID, productID)
		if err != nil && !db.IsNotFound(err) {
			return err
		}
		if err := s.inventory.ReserveTx(ctx, tx, productID, quantity); err != nil {
			return err
		}

		if existing != nil {
			itemID = existing.ID
			return repo.SetQuantity(ctx, existing.ID, existing.Quantity+quantity)
		}
		item := &models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
		if err := repo.Create(ctx, item); err != nil {
			return err
		}
		itemID = item.ID
		return nil
	})
	return itemID, err
}

// UpdateItem sets the line to quantity units of productID. Changing the product
// releases the old reservation and, when the user already holds a line for the
// new product, folds this line into it.
func (s *service) UpdateItem(ctx context.Context, userID uuid.UUID, itemID int64, productID int64, quantity int) (*ItemDTO, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	resultID := itemID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		line, err := repo.LockByID(ctx, itemID, userID)
		if err != nil {
			return notFoundOr(err)
		}
		if productID == 0 || productID == line.ProductID {
			if err := s.inventory.ReserveTx(ctx, tx, line.ProductID, quantity-line.Quantity); err != nil {
				return err
			}
			return repo.SetQuantity(ctx, line.ID, quantity)
		}

		if err := s.inventory.ReleaseTx(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
		target, err := repo.LockLine(ctx, userID, productID)
		if err != nil && !db.IsNotFound(err) {
			return err
		}
		if err := s.inventory.ReserveTx(ctx, tx, productID, quantity); err != nil {
			return err
		}
		if target == nil {
			return repo.Repoint(ctx, line.ID, productID, quantity)
		}

		resultID = target.ID
		if err := repo.SetQuantity(ctx, target.ID, target.Quantity+quantity); err != nil {
			return err
		}
		_, err = repo.Delete(ctx, line.ID, userID)
		return err
	})
	if err != nil {
		return nil, asServiceError(err, "update cart item")
	}
	return s.load(ctx, resultID)
}

// RemoveItem returns the line's reserved stock and deletes it.
func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, itemID int64) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		line, err := repo.LockByID(ctx, itemID, userID)
		if err != nil {
			return notFoundOr(err)
		}
		if err := s.inventory.ReleaseTx(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
		deleted, err := repo.Delete(ctx, line.ID, userID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrItemNotFound
		}
		return nil
	})
	return asServiceError(err, "remove cart item")
}

// ListItems returns the user's lines with product data attached.
func (s *service) ListItems(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error) {
	items, err := s.repo.ListWithProducts(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	out := make([]ItemDTO, 0, len(items))
	for i := range items {
		out = append(out, *NewItemDTO(&items[i]))
	}
	return out, nil
}

// Clear releases every line's reservation and empties the cart.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lines, err := repo.LockAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.inventory.ReleaseTx(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		_, err = repo.DeleteAllForUser(ctx, userID)
		return err
	})
	return asServiceError(err, "clear cart")
}

func (s *service) load(ctx context.Context, itemID int64) (*ItemDTO, error) {
	item, err := s.repo.GetWithProduct(ctx, itemID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrItemNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return NewItemDTO(item), nil
}

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
			WithDetails(map[string]any{"field": "quantity", "reason": "InvalidQuantity"})
	}
	return nil
}

func notFoundOr(err error) error {
	if db.IsNotFound(err) {
		return ErrItemNotFound
	}
	return err
}

// asServiceError keeps typed errors as they are and marks the rest as store failures.
func asServiceError(err error, op string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
