// Package dbtest opens throwaway databases for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/fastmart-backend/pkg/db"
	"github.com/angelmondragon/fastmart-backend/pkg/db/models"
	"github.com/angelmondragon/fastmart-backend/pkg/migrate"
)

// PostgresDSNEnv gates the integration tests that need a real Postgres.
const PostgresDSNEnv = "FASTMART_TEST_DB_DSN"

// NewSQLite returns a client over a private in-memory sqlite database with the
// schema migrated. The pool is pinned to one connection, mirroring the sqlite
// setup in db.New.
func NewSQLite(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", sanitize(t.Name()), uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.AutoMigrateModels(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.NewFromGorm(conn)
}

// OpenPostgres connects to FASTMART_TEST_DB_DSN and applies the goose migrations,
// skipping the test when the variable is unset.
func OpenPostgres(t *testing.T) *db.Client {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", PostgresDSNEnv)
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Run(context.Background(), sqlDB, migrate.DefaultDir, "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}
	return db.NewFromGorm(conn)
}

// MustCreateProduct inserts a product with the given stock.
func MustCreateProduct(t *testing.T, conn *gorm.DB, name string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:  name,
		Price: decimal.RequireFromString("9.99"),
		Stock: stock,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// MustCreateUser inserts a regular user with a unique email.
func MustCreateUser(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Email:        fmt.Sprintf("fm_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// Stock reads the current stock of a product.
func Stock(t *testing.T, conn *gorm.DB, productID int64) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, productID).Error; err != nil {
		t.Fatalf("load product %d: %v", productID, err)
	}
	return product.Stock
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
