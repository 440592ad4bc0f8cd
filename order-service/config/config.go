package config

import (
	"github.com/director74/saga-orders/pkg/config"
)

// Config содержит конфигурацию сервиса заказов
type Config struct {
	HTTP     config.HTTPConfig
	Postgres config.PostgresConfig
	Kafka    config.KafkaConfig
	Topics   TopicsConfig
}

// TopicsConfig содержит имена топиков саги
type TopicsConfig struct {
	Commands string
	Replies  string
}

func NewConfig() (*Config, error) {
	// Загружаем общую конфигурацию
	commonConfig := config.LoadCommonConfig("orders", "3001")

	return &Config{
		HTTP:     commonConfig.HTTP,
		Postgres: commonConfig.Postgres,
		Kafka:    commonConfig.Kafka,
		Topics: TopicsConfig{
			Commands: config.GetEnv("COMMAND_TOPIC", "order-service-commands"),
			Replies:  config.GetEnv("REPLY_TOPIC", "order-replies"),
		},
	}, nil
}
