package usecase

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/inventory-service/internal/entity"
	"github.com/director74/saga-orders/pkg/outbox"
	"github.com/director74/saga-orders/pkg/saga"
)

// InventoryUseCase обработчики команд саги на стороне склада. Резервирование
// переносит количество из доступного в зарезервированное и фиксирует
// резервирование отдельной записью, компенсация возвращает остатки обратно
type InventoryUseCase struct {
	logger *log.Logger
}

// NewInventoryUseCase создает usecase для работы с остатками
func NewInventoryUseCase() *InventoryUseCase {
	return &InventoryUseCase{
		logger: log.New(log.Writer(), "[InventoryService] [Inventory] ", log.LstdFlags),
	}
}

// HandleReserveInventory резервирует товар под заказ и пишет событие InventoryReserved в outbox
func (u *InventoryUseCase) HandleReserveInventory(tx *gorm.DB, cmd *saga.Command) (*saga.CommandReply, error) {
	var data saga.InventoryData
	if err := json.Unmarshal(cmd.Payload, &data); err != nil {
		return saga.NewFailedReply(cmd, fmt.Sprintf("некорректные данные резервирования: %v", err)), nil
	}

	// Резервирование могло быть выполнено конкурентной доставкой той же команды
	var existing entity.Reservation
	err := tx.Where("order_id = ? AND product_id = ? AND status = ?",
		data.OrderID, data.ProductID, entity.ReservationStatusReserved).
		First(&existing).Error
	if err == nil {
		u.logger.Printf("SagaID=%s: резервирование по заказу %s уже выполнено", cmd.SagaID, data.OrderID)
		return saga.NewSuccessReply(cmd, existing)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("ошибка поиска резервирования по заказу %s: %w", data.OrderID, err)
	}

	var inventory entity.Inventory
	if err := tx.First(&inventory, "product_id = ?", data.ProductID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			u.logger.Printf("SagaID=%s: товар %s не найден на складе", cmd.SagaID, data.ProductID)
			return saga.NewFailedReply(cmd, "Product not found"), nil
		}
		return nil, fmt.Errorf("ошибка поиска товара %s: %w", data.ProductID, err)
	}

	if inventory.AvailableQuantity < data.Quantity {
		u.logger.Printf("SagaID=%s: недостаточно товара %s: доступно %d, запрошено %d",
			cmd.SagaID, data.ProductID, inventory.AvailableQuantity, data.Quantity)
		return saga.NewFailedReply(cmd, "Insufficient inventory"), nil
	}

	result := tx.Model(&entity.Inventory{}).
		Where("product_id = ? AND available_quantity >= ?", data.ProductID, data.Quantity).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity - ?", data.Quantity),
			"reserved_quantity":  gorm.Expr("reserved_quantity + ?", data.Quantity),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка резервирования товара %s: %w", data.ProductID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Остаток ушел между проверкой и списанием
		return saga.NewFailedReply(cmd, "Insufficient inventory"), nil
	}

	reservation := entity.Reservation{
		ID:        uuid.New(),
		OrderID:   data.OrderID,
		ProductID: data.ProductID,
		Quantity:  data.Quantity,
		Status:    entity.ReservationStatusReserved,
	}
	if err := tx.Create(&reservation).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания резервирования по заказу %s: %w", data.OrderID, err)
	}

	if err := outbox.Append(tx, reservation.OrderID, "InventoryReserved", reservation); err != nil {
		return nil, err
	}

	u.logger.Printf("SagaID=%s: зарезервировано %d ед. товара %s по заказу %s",
		cmd.SagaID, data.Quantity, data.ProductID, data.OrderID)
	return saga.NewSuccessReply(cmd, map[string]interface{}{
		"reserved": true,
		"quantity": data.Quantity,
	})
}

// HandleCompensateInventory снимает резервирование (компенсация ReserveInventory)
func (u *InventoryUseCase) HandleCompensateInventory(tx *gorm.DB, cmd *saga.Command) (*saga.CommandReply, error) {
	var data saga.InventoryData
	if err := json.Unmarshal(cmd.Payload, &data); err != nil {
		return saga.NewFailedReply(cmd, fmt.Sprintf("некорректные данные резервирования: %v", err)), nil
	}

	var reservation entity.Reservation
	err := tx.Where("order_id = ? AND product_id = ? AND status = ?",
		data.OrderID, data.ProductID, entity.ReservationStatusReserved).
		First(&reservation).Error
	if err == gorm.ErrRecordNotFound {
		// Резервирование не выполнялось или уже снято — компенсация идемпотентна
		u.logger.Printf("SagaID=%s: резервирование по заказу %s не найдено при отмене", cmd.SagaID, data.OrderID)
		return saga.NewSuccessReply(cmd, map[string]interface{}{
			"order_id":    data.OrderID,
			"compensated": true,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска резервирования по заказу %s: %w", data.OrderID, err)
	}

	result := tx.Model(&entity.Inventory{}).
		Where("product_id = ?", reservation.ProductID).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity + ?", reservation.Quantity),
			"reserved_quantity":  gorm.Expr("reserved_quantity - ?", reservation.Quantity),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка возврата остатков товара %s: %w", reservation.ProductID, result.Error)
	}

	if err := tx.Model(&reservation).Update("status", entity.ReservationStatusCancelled).Error; err != nil {
		return nil, fmt.Errorf("ошибка отмены резервирования по заказу %s: %w", data.OrderID, err)
	}

	u.logger.Printf("SagaID=%s: резервирование по заказу %s отменено, возвращено %d ед. товара %s",
		cmd.SagaID, data.OrderID, reservation.Quantity, reservation.ProductID)
	return saga.NewSuccessReply(cmd, map[string]interface{}{
		"order_id":    data.OrderID,
		"compensated": true,
	})
}
