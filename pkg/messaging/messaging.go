package messaging

import (
	"context"

	"github.com/director74/saga-orders/pkg/config"
	"github.com/director74/saga-orders/pkg/kafka"
)

// MessagePublisher интерфейс для публикации сообщений
type MessagePublisher interface {
	PublishMessage(topic, key string, message interface{}) error
}

// MessageConsumer интерфейс для получения сообщений
type MessageConsumer interface {
	ConsumeTopic(ctx context.Context, groupID, topic string, handler func([]byte) error) error
}

// MessageBroker объединяет функциональность публикации и обработки сообщений
type MessageBroker interface {
	MessagePublisher
	MessageConsumer
	Close() error
}

// InitKafka инициализирует подключение к Kafka с общими параметрами
func InitKafka(cfg config.KafkaConfig) (*kafka.Kafka, error) {
	k, err := kafka.NewKafka(kafka.Config{
		Brokers: cfg.Brokers,
	})
	if err != nil {
		return nil, err
	}

	return k, nil
}
