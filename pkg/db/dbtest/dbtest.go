// Package dbtest opens throwaway sqlite databases carrying the service's
// models, for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
)

// Open returns an isolated in-memory database with every model migrated.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

func MustCreateProduct(t testing.TB, db *gorm.DB, name string, pricePerKg, pieceKg string) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:            uuid.NewString(),
		Name:          name,
		PricePerKg:    decimal.RequireFromString(pricePerKg),
		PieceWeightKg: decimal.RequireFromString(pieceKg),
		StockKg:       decimal.NewFromInt(100),
		IsActive:      true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func MustCreateProfile(t testing.TB, db *gorm.DB, username string, role enums.Role) *models.UserProfile {
	t.Helper()
	display := strings.ToUpper(username[:1]) + username[1:]
	phone := "+91-90000-00000"
	p := &models.UserProfile{
		ID:          uuid.NewString(),
		Username:    username,
		DisplayName: &display,
		Phone:       &phone,
		Role:        role,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

// MustCreateOrder inserts an order for userID. createdAt orders rows for the
// "most recent order" queries.
func MustCreateOrder(t testing.TB, db *gorm.DB, userID, productID string, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()
	o := &models.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		ProductID:       productID,
		Quantity:        2,
		WeightKg:        decimal.RequireFromString("1.0"),
		TotalAmount:     decimal.RequireFromString("280"),
		DeliveryAddress: "12B, MG Road",
		Status:          status,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}
