package repo

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/inventory-service/internal/entity"
	"github.com/director74/saga-orders/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&entity.Inventory{}))
	return db
}

func TestUpsertStockCreatesAndUpdates(t *testing.T) {
	repository := NewInventoryRepository(newTestDB(t))
	productID := uuid.New()

	created, err := repository.UpsertStock(context.Background(), productID, 10)
	assert.NoError(t, err)
	assert.Equal(t, 10, created.AvailableQuantity)

	updated, err := repository.UpsertStock(context.Background(), productID, 25)
	assert.NoError(t, err)
	assert.Equal(t, 25, updated.AvailableQuantity)
	assert.Equal(t, 0, updated.ReservedQuantity)
}

func TestGetByProductIDNotFound(t *testing.T) {
	repository := NewInventoryRepository(newTestDB(t))

	_, err := repository.GetByProductID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, errors.ErrNotFound)
}
