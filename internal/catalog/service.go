package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fastmart-backend/pkg/db"
	"github.com/angelmondragon/fastmart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fastmart-backend/pkg/errors"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
	"github.com/angelmondragon/fastmart-backend/pkg/pagination"
)

var (
	// ErrProductNotFound is returned when a product id does not resolve.
	ErrProductNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	// ErrAdminRequired is returned when a non-admin attempts a catalog write.
	ErrAdminRequired = pkgerrors.New(pkgerrors.CodeForbidden, "admin privileges required")
)

// Actor identifies the caller of a catalog write.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Service exposes catalog reads and admin-only writes.
type Service interface {
	ListProducts(ctx context.Context, skip, limit int) ([]ProductDTO, error)
	SearchProducts(ctx context.Context, query string, skip, limit int) ([]ProductDTO, error)
	GetProduct(ctx context.Context, id int64) (*ProductDTO, error)
	CreateProduct(ctx context.Context, actor Actor, input ProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, actor Actor, id int64, input ProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, actor Actor, id int64) error
}

type productRepository interface {
	List(ctx context.Context, skip, limit int) ([]models.Product, error)
	Search(ctx context.Context, query string, skip, limit int) ([]models.Product, error)
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// AdminLookup loads the stored account behind a token so a revoked admin loses
// write access before the token expires.
type AdminLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo   productRepository
	cache  *ListingCache
	admins AdminLookup
	logg   *logger.Logger
}

// NewService wires the catalog service. cache may be nil to disable listing
// caching. admins may be nil, in which case the token's admin claim is trusted.
func NewService(repo productRepository, cache *ListingCache, admins AdminLookup, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, cache: cache, admins: admins, logg: logg}, nil
}

func (s *service) authorize(ctx context.Context, actor Actor) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}
	if s.admins == nil {
		return nil
	}
	user, err := s.admins.FindByID(ctx, actor.UserID)
	if err != nil {
		if db.IsNotFound(err) {
			return ErrAdminRequired
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin account")
	}
	if !user.IsAdmin || !user.IsActive {
		s.logg.Warn(s.logFields(ctx, actor, 0), "admin claim no longer backed by account")
		return ErrAdminRequired
	}
	return nil
}

func (s *service) ListProducts(ctx context.Context, skip, limit int) ([]ProductDTO, error) {
	params := pagination.Params{Skip: skip, Limit: limit}.Normalize()
	return s.cache.Fetch(ctx, params, func(ctx context.Context) ([]ProductDTO, error) {
		products, err := s.repo.List(ctx, params.Skip, params.Limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
		}
		return NewProductDTOs(products), nil
	})
}

func (s *service) SearchProducts(ctx context.Context, query string, skip, limit int) ([]ProductDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	params := pagination.Params{Skip: skip, Limit: limit}.Normalize()
	products, err := s.repo.Search(ctx, query, params.Skip, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	return NewProductDTOs(products), nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrProductNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

func (s *service) CreateProduct(ctx context.Context, actor Actor, input ProductInput) (*ProductDTO, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	input = input.normalized()
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var product models.Product
	input.apply(&product)
	if err := s.repo.Create(ctx, &product); err != nil {
		return nil, writeError(err, "create product")
	}

	s.cache.Invalidate(ctx)
	s.logg.Info(s.logFields(ctx, actor, product.ID), "product created")
	dto := NewProductDTO(&product)
	return &dto, nil
}

func (s *service) UpdateProduct(ctx context.Context, actor Actor, id int64, input ProductInput) (*ProductDTO, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	input = input.normalized()
	if err := validateInput(input); err != nil {
		return nil, err
	}

	product := models.Product{ID: id}
	input.apply(&product)
	found, err := s.repo.Update(ctx, &product)
	if err != nil {
		return nil, writeError(err, "update product")
	}
	if !found {
		return nil, ErrProductNotFound
	}

	s.cache.Invalidate(ctx)
	s.logg.Info(s.logFields(ctx, actor, id), "product updated")
	return s.GetProduct(ctx, id)
}

func (s *service) DeleteProduct(ctx context.Context, actor Actor, id int64) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !found {
		return ErrProductNotFound
	}

	s.cache.Invalidate(ctx)
	s.logg.Info(s.logFields(ctx, actor, id), "product deleted")
	return nil
}

func (s *service) logFields(ctx context.Context, actor Actor, productID int64) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"user_id":    actor.UserID.String(),
		"product_id": productID,
	})
}

func validateInput(in ProductInput) error {
	switch {
	case in.Name == "":
		return invalidField("name", "name is required")
	case !in.Price.IsPositive():
		return invalidField("price", "price must be greater than zero")
	case in.Stock < 0:
		return invalidField("stock", "stock must be zero or greater")
	}
	return nil
}

func invalidField(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": field})
}

func writeError(err error, op string) error {
	if db.IsCheckViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "product violates catalog constraints")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
