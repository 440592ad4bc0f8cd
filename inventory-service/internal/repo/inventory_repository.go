package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/director74/saga-orders/inventory-service/internal/entity"
	apperrors "github.com/director74/saga-orders/pkg/errors"
)

// InventoryRepository репозиторий остатков для административного API.
// Команды саги работают с остатками напрямую в транзакции рантайма команд
type InventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository создает новый репозиторий остатков
func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{
		db: db,
	}
}

// GetByProductID возвращает остаток товара
func (r *InventoryRepository) GetByProductID(ctx context.Context, productID uuid.UUID) (*entity.Inventory, error) {
	var inventory entity.Inventory
	result := r.db.WithContext(ctx).First(&inventory, "product_id = ?", productID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска остатка товара %s: %w", productID, result.Error)
	}
	return &inventory, nil
}

// UpsertStock устанавливает доступное количество товара, создавая запись при необходимости
func (r *InventoryRepository) UpsertStock(ctx context.Context, productID uuid.UUID, quantity int) (*entity.Inventory, error) {
	inventory := entity.Inventory{
		ProductID:         productID,
		AvailableQuantity: quantity,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"available_quantity": quantity}),
	}).Create(&inventory).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления остатка товара %s: %w", productID, err)
	}
	return r.GetByProductID(ctx, productID)
}
