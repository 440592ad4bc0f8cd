package kafka

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/director74/saga-orders/order-service/config"
	"github.com/director74/saga-orders/order-service/internal/usecase"
	"github.com/director74/saga-orders/pkg/messaging"
	"github.com/director74/saga-orders/pkg/saga"
	"github.com/director74/saga-orders/pkg/sagahandler"
)

// SagaConsumer подписывает сервис заказов на топики саги: команды
// собственного участника и ответы всех участников для оркестратора
type SagaConsumer struct {
	broker       messaging.MessageBroker
	commands     *sagahandler.CommandConsumer
	orchestrator *usecase.SagaOrchestrator
	topics       config.TopicsConfig
}

func NewSagaConsumer(
	broker messaging.MessageBroker,
	db *gorm.DB,
	orchestrator *usecase.SagaOrchestrator,
	orderUseCase *usecase.OrderUseCase,
	topics config.TopicsConfig,
) *SagaConsumer {
	commands := sagahandler.NewCommandConsumer(db, broker, topics.Replies, "OrderService")
	commands.Register(saga.CommandCreateOrder, orderUseCase.HandleCreateOrder)
	commands.Register(saga.CommandApproveOrder, orderUseCase.HandleApproveOrder)
	commands.Register(saga.CommandCancelOrder, orderUseCase.HandleCancelOrder)

	return &SagaConsumer{
		broker:       broker,
		commands:     commands,
		orchestrator: orchestrator,
		topics:       topics,
	}
}

// Setup запускает группы консьюмеров команд и ответов
func (c *SagaConsumer) Setup(ctx context.Context) error {
	if err := c.broker.ConsumeTopic(ctx, "order-service", c.topics.Commands, c.commands.HandleMessage); err != nil {
		return fmt.Errorf("ошибка подписки на топик команд: %w", err)
	}
	if err := c.broker.ConsumeTopic(ctx, "order-service-replies", c.topics.Replies, c.orchestrator.HandleReply); err != nil {
		return fmt.Errorf("ошибка подписки на топик ответов: %w", err)
	}
	return nil
}
