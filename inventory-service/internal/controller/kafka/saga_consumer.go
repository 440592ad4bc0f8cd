package kafka

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/director74/saga-orders/inventory-service/config"
	"github.com/director74/saga-orders/inventory-service/internal/usecase"
	"github.com/director74/saga-orders/pkg/messaging"
	"github.com/director74/saga-orders/pkg/saga"
	"github.com/director74/saga-orders/pkg/sagahandler"
)

// SagaConsumer подписывает сервис склада на топик команд саги
type SagaConsumer struct {
	broker   messaging.MessageBroker
	commands *sagahandler.CommandConsumer
	topics   config.TopicsConfig
}

func NewSagaConsumer(
	broker messaging.MessageBroker,
	db *gorm.DB,
	inventoryUseCase *usecase.InventoryUseCase,
	topics config.TopicsConfig,
) *SagaConsumer {
	commands := sagahandler.NewCommandConsumer(db, broker, topics.Replies, "InventoryService")
	commands.Register(saga.CommandReserveInventory, inventoryUseCase.HandleReserveInventory)
	commands.Register(saga.CommandCompensateInventory, inventoryUseCase.HandleCompensateInventory)

	return &SagaConsumer{
		broker:   broker,
		commands: commands,
		topics:   topics,
	}
}

// Setup запускает группу консьюмеров команд
func (c *SagaConsumer) Setup(ctx context.Context) error {
	if err := c.broker.ConsumeTopic(ctx, "inventory-service", c.topics.Commands, c.commands.HandleMessage); err != nil {
		return fmt.Errorf("ошибка подписки на топик команд: %w", err)
	}
	return nil
}
