package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// Config содержит настройки подключения к Kafka
type Config struct {
	Brokers []string
}

// Kafka представляет клиент для работы с Kafka: синхронный продюсер с
// партиционированием по ключу и группы консьюмеров поверх одного подключения
type Kafka struct {
	config   Config
	producer sarama.SyncProducer

	mu     sync.Mutex
	groups []sarama.ConsumerGroup
}

func NewKafka(cfg Config) (*Kafka, error) {
	k := &Kafka{
		config: cfg,
	}

	if err := k.connect(); err != nil {
		return nil, err
	}

	return k, nil
}

// connect создает синхронный продюсер
func (k *Kafka) connect() error {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Timeout = 5 * time.Second
	// Одинаковый ключ — одна партиция: порядок сообщений одной саги гарантирован
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(k.config.Brokers, sc)
	if err != nil {
		return fmt.Errorf("failed to connect to kafka: %w", err)
	}
	k.producer = producer

	return nil
}

// Close закрывает продюсер и все группы консьюмеров
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, group := range k.groups {
		if err := group.Close(); err != nil {
			return fmt.Errorf("ошибка при закрытии группы консьюмеров: %w", err)
		}
	}
	k.groups = nil

	if k.producer != nil {
		if err := k.producer.Close(); err != nil {
			return fmt.Errorf("ошибка при закрытии продюсера: %w", err)
		}
	}
	return nil
}

// PublishMessage сериализует сообщение в JSON и публикует его в топик с заданным ключом
func (k *Kafka) PublishMessage(topic, key string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("не удалось опубликовать сообщение в %s: %w", topic, err)
	}

	return nil
}

// ConsumeTopic запускает группу консьюмеров для топика. Обработчик вызывается
// для каждого сообщения; оффсет подтверждается только при nil-ошибке, поэтому
// необработанные сообщения будут доставлены повторно после перезапуска
func (k *Kafka) ConsumeTopic(ctx context.Context, groupID, topic string, handler func([]byte) error) error {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Session.Timeout = 6 * time.Second
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(k.config.Brokers, groupID, sc)
	if err != nil {
		return fmt.Errorf("ошибка при создании группы консьюмеров %s: %w", groupID, err)
	}

	k.mu.Lock()
	k.groups = append(k.groups, group)
	k.mu.Unlock()

	go func() {
		for err := range group.Errors() {
			log.Printf("Ошибка группы консьюмеров %s: %v", groupID, err)
		}
	}()

	go func() {
		gh := &groupHandler{handler: handler}
		for {
			// Consume возвращается при ребалансировке или ошибке обработчика,
			// цикл переподключает группу с последнего подтвержденного оффсета
			if err := group.Consume(ctx, []string{topic}, gh); err != nil {
				log.Printf("Ошибка при обработке топика %s: %v", topic, err)
				time.Sleep(time.Second)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return nil
}

type groupHandler struct {
	handler func([]byte) error
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handler(msg.Value); err != nil {
			// Завершаем сессию, не подтверждая оффсет: подтверждение более
			// позднего сообщения зафиксировало бы партицию дальше ошибочного.
			// После переподключения группа продолжит с последнего
			// подтвержденного оффсета и сообщение будет доставлено повторно
			return fmt.Errorf("ошибка обработки сообщения %s/%d@%d: %w",
				msg.Topic, msg.Partition, msg.Offset, err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
