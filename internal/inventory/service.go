package inventory

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fastmart-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/fastmart-backend/pkg/errors"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
	"github.com/angelmondragon/fastmart-backend/pkg/metrics"
	"github.com/angelmondragon/fastmart-backend/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	opReserve = "reserve"
	opRelease = "release"

	outcomeOK           = "ok"
	outcomeInsufficient = "insufficient"
	outcomeNotFound     = "not_found"
	outcomeInvalid      = "invalid"
	outcomeError        = "error"
)

var (
	// ErrProductNotFound is returned when the product row does not exist.
	ErrProductNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	// ErrInsufficientStock is returned when a reservation exceeds available stock.
	ErrInsufficientStock = pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
)

// Service mutates product stock. Reservations take stock away, releases give it back.
//
// The Tx variants run on the caller's transaction so a stock change can commit
// or roll back together with other writes; a nil tx uses the base connection.
type Service interface {
	Reserve(ctx context.Context, productID int64, delta int) error
	Release(ctx context.Context, productID int64, amount int) error
	ReserveTx(ctx context.Context, tx *gorm.DB, productID int64, delta int) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID int64, amount int) error
	Available(ctx context.Context, productID int64) (int, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	logg     *logger.Logger
	metrics  *metrics.InventoryMetrics
	tracer   trace.Tracer
}

// NewService constructs the inventory service. m may be nil.
func NewService(repo *Repository, dbClient *db.Client, logg *logger.Logger, m *metrics.InventoryMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		logg:     logg,
		metrics:  m,
		tracer:   tracing.Tracer("inventory"),
	}, nil
}

// Reserve takes delta units in a transaction of its own. A negative delta releases -delta.
func (s *service) Reserve(ctx context.Context, productID int64, delta int) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReserveTx(ctx, tx, productID, delta)
	})
}

// Release returns amount units in a transaction of its own.
func (s *service) Release(ctx context.Context, productID int64, amount int) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseTx(ctx, tx, productID, amount)
	})
}

func (s *service) ReserveTx(ctx context.Context, tx *gorm.DB, productID int64, delta int) error {
	if delta < 0 {
		return s.ReleaseTx(ctx, tx, productID, -delta)
	}

	ctx, span := s.startSpan(ctx, opReserve, productID, delta)
	defer span.End()

	repo := s.repo.WithTx(tx)
	err := s.reserve(ctx, repo, productID, delta)
	s.finish(ctx, span, opReserve, productID, delta, err)
	return err
}

func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, productID int64, amount int) error {
	ctx, span := s.startSpan(ctx, opRelease, productID, amount)
	defer span.End()

	repo := s.repo.WithTx(tx)
	err := s.release(ctx, repo, productID, amount)
	s.finish(ctx, span, opRelease, productID, amount, err)
	return err
}

// Available returns the product's current stock.
func (s *service) Available(ctx context.Context, productID int64) (int, error) {
	stock, err := s.repo.Stock(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return 0, ErrProductNotFound
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	return stock, nil
}

func (s *service) reserve(ctx context.Context, repo *Repository, productID int64, delta int) error {
	if delta == 0 {
		return s.ensureExists(ctx, repo, productID)
	}

	ok, err := repo.DecrementIfAvailable(ctx, productID, delta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if ok {
		return nil
	}

	// zero rows: either the product is gone or the guard stock >= delta failed.
	if err := s.ensureExists(ctx, repo, productID); err != nil {
		return err
	}
	return ErrInsufficientStock
}

func (s *service) release(ctx context.Context, repo *Repository, productID int64, amount int) error {
	if amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release amount must be non-negative")
	}
	if amount == 0 {
		return s.ensureExists(ctx, repo, productID)
	}

	ok, err := repo.Increment(ctx, productID, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	if !ok {
		return ErrProductNotFound
	}
	return nil
}

func (s *service) ensureExists(ctx context.Context, repo *Repository, productID int64) error {
	exists, err := repo.Exists(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product")
	}
	if !exists {
		return ErrProductNotFound
	}
	return nil
}

func (s *service) startSpan(ctx context.Context, op string, productID int64, qty int) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "inventory."+op, trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("inventory.quantity", qty),
	))
}

func (s *service) finish(ctx context.Context, span trace.Span, op string, productID int64, qty int, err error) {
	outcome := outcomeOf(err)
	span.SetAttributes(attribute.String("inventory.outcome", outcome))
	s.metrics.Observe(op, outcome, qty)

	switch outcome {
	case outcomeOK:
	case outcomeError:
		tracing.Fail(span, err)
		s.logg.Error(s.logFields(ctx, op, productID, qty), "inventory adjustment failed", err)
	default:
		s.logg.Info(s.logFields(ctx, op, productID, qty), "inventory adjustment rejected: "+outcome)
	}
}

func (s *service) logFields(ctx context.Context, op string, productID int64, qty int) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"op":         op,
		"product_id": productID,
		"delta":      qty,
	})
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
		return outcomeInsufficient
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return outcomeNotFound
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation):
		return outcomeInvalid
	default:
		return outcomeError
	}
}
