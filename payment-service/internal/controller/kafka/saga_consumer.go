package kafka

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/director74/saga-orders/payment-service/config"
	"github.com/director74/saga-orders/payment-service/internal/usecase"
	"github.com/director74/saga-orders/pkg/messaging"
	"github.com/director74/saga-orders/pkg/saga"
	"github.com/director74/saga-orders/pkg/sagahandler"
)

// SagaConsumer подписывает сервис платежей на топик команд саги
type SagaConsumer struct {
	broker   messaging.MessageBroker
	commands *sagahandler.CommandConsumer
	topics   config.TopicsConfig
}

func NewSagaConsumer(
	broker messaging.MessageBroker,
	db *gorm.DB,
	paymentUseCase *usecase.PaymentUseCase,
	topics config.TopicsConfig,
) *SagaConsumer {
	commands := sagahandler.NewCommandConsumer(db, broker, topics.Replies, "PaymentService")
	commands.Register(saga.CommandProcessPayment, paymentUseCase.HandleProcessPayment)
	commands.Register(saga.CommandCompensatePayment, paymentUseCase.HandleCompensatePayment)

	return &SagaConsumer{
		broker:   broker,
		commands: commands,
		topics:   topics,
	}
}

// Setup запускает группу консьюмеров команд
func (c *SagaConsumer) Setup(ctx context.Context) error {
	if err := c.broker.ConsumeTopic(ctx, "payment-service", c.topics.Commands, c.commands.HandleMessage); err != nil {
		return fmt.Errorf("ошибка подписки на топик команд: %w", err)
	}
	return nil
}
