package usecase

import (
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/director74/saga-orders/order-service/internal/entity"
	"github.com/director74/saga-orders/pkg/outbox"
	"github.com/director74/saga-orders/pkg/saga"
)

// OrderUseCase обработчики команд саги на стороне заказов. Каждый обработчик
// выполняется внутри транзакции рантайма команд: доменные изменения, событие
// outbox и запись идемпотентности фиксируются атомарно
type OrderUseCase struct {
	logger *log.Logger
}

// NewOrderUseCase создает usecase для работы с заказами
func NewOrderUseCase() *OrderUseCase {
	return &OrderUseCase{
		logger: log.New(log.Writer(), "[OrderService] [Orders] ", log.LstdFlags),
	}
}

// HandleCreateOrder создает заказ и событие OrderCreated в outbox
func (u *OrderUseCase) HandleCreateOrder(tx *gorm.DB, cmd *saga.Command) (*saga.CommandReply, error) {
	var data saga.OrderData
	if err := json.Unmarshal(cmd.Payload, &data); err != nil {
		// Кривая нагрузка — доменный провал, оркестратор запустит компенсацию
		return saga.NewFailedReply(cmd, fmt.Sprintf("некорректные данные заказа: %v", err)), nil
	}

	order := entity.Order{
		ID:          data.OrderID,
		CustomerID:  data.CustomerID,
		ProductID:   data.ProductID,
		Quantity:    data.Quantity,
		TotalAmount: data.TotalAmount,
		Status:      entity.OrderStatusCreated,
	}
	if err := tx.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания заказа %s: %w", data.OrderID, err)
	}

	if err := outbox.Append(tx, order.ID, "OrderCreated", order); err != nil {
		return nil, err
	}

	u.logger.Printf("SagaID=%s: заказ %s создан", cmd.SagaID, order.ID)
	return saga.NewSuccessReply(cmd, order)
}

// HandleApproveOrder переводит заказ в статус approved
func (u *OrderUseCase) HandleApproveOrder(tx *gorm.DB, cmd *saga.Command) (*saga.CommandReply, error) {
	return u.updateStatus(tx, cmd, entity.OrderStatusApproved)
}

// HandleCancelOrder переводит заказ в статус cancelled (компенсация CreateOrder)
func (u *OrderUseCase) HandleCancelOrder(tx *gorm.DB, cmd *saga.Command) (*saga.CommandReply, error) {
	return u.updateStatus(tx, cmd, entity.OrderStatusCancelled)
}

func (u *OrderUseCase) updateStatus(tx *gorm.DB, cmd *saga.Command, status entity.OrderStatus) (*saga.CommandReply, error) {
	var data saga.OrderData
	if err := json.Unmarshal(cmd.Payload, &data); err != nil {
		return saga.NewFailedReply(cmd, fmt.Sprintf("некорректные данные заказа: %v", err)), nil
	}

	result := tx.Model(&entity.Order{}).
		Where("id = ?", data.OrderID).
		Update("status", status)
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка обновления статуса заказа %s: %w", data.OrderID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Заказ так и не был создан — для компенсации это не ошибка
		u.logger.Printf("SagaID=%s: заказ %s не найден при переводе в %s", cmd.SagaID, data.OrderID, status)
	} else {
		u.logger.Printf("SagaID=%s: заказ %s переведен в %s", cmd.SagaID, data.OrderID, status)
	}

	return saga.NewSuccessReply(cmd, map[string]interface{}{
		"order_id": data.OrderID,
		"status":   status,
	})
}
