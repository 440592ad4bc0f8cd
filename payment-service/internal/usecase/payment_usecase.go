package usecase

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/payment-service/internal/entity"
	"github.com/director74/saga-orders/pkg/outbox"
	"github.com/director74/saga-orders/pkg/saga"
)

// PaymentUseCase обработчики команд саги на стороне платежей. Списание
// эмулируется: часть платежей отклоняется случайно, доля успешных задается
// конфигурацией сервиса
type PaymentUseCase struct {
	successRate float64
	randFloat   func() float64
	logger      *log.Logger
}

// NewPaymentUseCase создает usecase для работы с платежами
func NewPaymentUseCase(successRate float64) *PaymentUseCase {
	return &PaymentUseCase{
		successRate: successRate,
		randFloat:   rand.Float64,
		logger:      log.New(log.Writer(), "[PaymentService] [Payments] ", log.LstdFlags),
	}
}

// HandleProcessPayment списывает оплату заказа и пишет событие PaymentProcessed в outbox
func (u *PaymentUseCase) HandleProcessPayment(tx *gorm.DB, cmd *saga.Command) (*saga.CommandReply, error) {
	var data saga.PaymentData
	if err := json.Unmarshal(cmd.Payload, &data); err != nil {
		return saga.NewFailedReply(cmd, fmt.Sprintf("некорректные данные платежа: %v", err)), nil
	}

	// Платеж по заказу мог быть проведен конкурентной доставкой той же команды
	var existing entity.Payment
	err := tx.Where("order_id = ? AND status = ?", data.OrderID, entity.PaymentStatusProcessed).
		First(&existing).Error
	if err == nil {
		u.logger.Printf("SagaID=%s: платеж по заказу %s уже проведен", cmd.SagaID, data.OrderID)
		return saga.NewSuccessReply(cmd, existing)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("ошибка поиска платежа по заказу %s: %w", data.OrderID, err)
	}

	if u.randFloat() >= u.successRate {
		u.logger.Printf("SagaID=%s: платеж по заказу %s отклонен", cmd.SagaID, data.OrderID)
		return saga.NewFailedReply(cmd, "Payment processing failed"), nil
	}

	now := time.Now()
	payment := entity.Payment{
		ID:            uuid.New(),
		OrderID:       data.OrderID,
		Amount:        data.Amount,
		PaymentMethod: data.PaymentMethod,
		Status:        entity.PaymentStatusProcessed,
		ProcessedAt:   &now,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания платежа по заказу %s: %w", data.OrderID, err)
	}

	if err := outbox.Append(tx, payment.OrderID, "PaymentProcessed", payment); err != nil {
		return nil, err
	}

	u.logger.Printf("SagaID=%s: платеж %s по заказу %s проведен на сумму %.2f",
		cmd.SagaID, payment.ID, payment.OrderID, payment.Amount)
	return saga.NewSuccessReply(cmd, payment)
}

// HandleCompensatePayment возвращает оплату заказа (компенсация ProcessPayment)
func (u *PaymentUseCase) HandleCompensatePayment(tx *gorm.DB, cmd *saga.Command) (*saga.CommandReply, error) {
	var data saga.PaymentData
	if err := json.Unmarshal(cmd.Payload, &data); err != nil {
		return saga.NewFailedReply(cmd, fmt.Sprintf("некорректные данные платежа: %v", err)), nil
	}

	result := tx.Model(&entity.Payment{}).
		Where("order_id = ? AND status = ?", data.OrderID, entity.PaymentStatusProcessed).
		Update("status", entity.PaymentStatusRefunded)
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка возврата платежа по заказу %s: %w", data.OrderID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Платеж не проводился или уже возвращен — компенсация идемпотентна
		u.logger.Printf("SagaID=%s: платеж по заказу %s не найден при возврате", cmd.SagaID, data.OrderID)
	} else {
		u.logger.Printf("SagaID=%s: платеж по заказу %s возвращен", cmd.SagaID, data.OrderID)
	}

	return saga.NewSuccessReply(cmd, map[string]interface{}{
		"order_id": data.OrderID,
		"refunded": true,
	})
}
