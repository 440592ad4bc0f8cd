package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/director74/saga-orders/pkg/saga"
)

// SagaRepository интерфейс хранилища саг
type SagaRepository interface {
	Create(ctx context.Context, transaction *saga.SagaTransaction) error
	GetByID(ctx context.Context, sagaID uuid.UUID) (*saga.SagaTransaction, error)
	Update(ctx context.Context, transaction *saga.SagaTransaction) error
}

// MessagePublisher интерфейс для публикации сообщений в Kafka
type MessagePublisher interface {
	PublishMessage(topic, key string, message interface{}) error
}
