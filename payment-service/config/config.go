package config

import (
	"github.com/director74/saga-orders/pkg/config"
)

// Config содержит конфигурацию платежного сервиса
type Config struct {
	HTTP        config.HTTPConfig
	Postgres    config.PostgresConfig
	Kafka       config.KafkaConfig
	Topics      TopicsConfig
	SuccessRate float64
}

// TopicsConfig содержит имена топиков саги
type TopicsConfig struct {
	Commands string
	Replies  string
}

func NewConfig() (*Config, error) {
	// Загружаем общую конфигурацию
	commonConfig := config.LoadCommonConfig("payments", "3002")

	return &Config{
		HTTP:     commonConfig.HTTP,
		Postgres: commonConfig.Postgres,
		Kafka:    commonConfig.Kafka,
		Topics: TopicsConfig{
			Commands: config.GetEnv("COMMAND_TOPIC", "payment-service-commands"),
			Replies:  config.GetEnv("REPLY_TOPIC", "order-replies"),
		},
		SuccessRate: config.GetEnvAsFloat("PAYMENT_SUCCESS_RATE", 0.8),
	}, nil
}
