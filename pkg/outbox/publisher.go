package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/director74/saga-orders/pkg/messaging"
)

const (
	defaultInterval  = 5 * time.Second
	defaultBatchSize = 100
)

// Publisher периодически выгружает необработанные события outbox в Kafka.
// Пометка processed идет после публикации, поэтому при сбое между публикацией
// и пометкой событие уйдет повторно (семантика at-least-once)
type Publisher struct {
	db        *gorm.DB
	publisher messaging.MessagePublisher
	interval  time.Duration
	batchSize int
	logger    *log.Logger
}

// NewPublisher создает обработчик outbox с параметрами по умолчанию
func NewPublisher(db *gorm.DB, publisher messaging.MessagePublisher, serviceName string) *Publisher {
	return &Publisher{
		db:        db,
		publisher: publisher,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    log.New(log.Writer(), fmt.Sprintf("[%s] [Outbox] ", serviceName), log.LstdFlags),
	}
}

// Run запускает цикл выгрузки до отмены контекста
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Printf("Запущен обработчик outbox (интервал %v, пакет %d)", p.interval, p.batchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Println("Обработчик outbox остановлен")
			return
		case <-ticker.C:
			if err := p.processPending(ctx); err != nil {
				p.logger.Printf("Ошибка выгрузки outbox: %v", err)
			}
		}
	}
}

// processPending публикует пакет необработанных событий в порядке создания.
// Ошибка публикации одного события не блокирует остальные
func (p *Publisher) processPending(ctx context.Context) error {
	var events []Event
	err := p.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at asc").
		Limit(p.batchSize).
		Find(&events).Error
	if err != nil {
		return fmt.Errorf("ошибка чтения событий outbox: %w", err)
	}

	for _, event := range events {
		topic := TopicForEvent(event.EventType)
		if err := p.publisher.PublishMessage(topic, event.AggregateID.String(), json.RawMessage(event.EventData)); err != nil {
			p.logger.Printf("Ошибка публикации события %s (%s) в %s: %v", event.ID, event.EventType, topic, err)
			continue
		}

		err := p.db.WithContext(ctx).Model(&Event{}).
			Where("id = ?", event.ID).
			Update("processed", true).Error
		if err != nil {
			// Событие уже опубликовано; при сбое пометки оно уйдет еще раз
			p.logger.Printf("Ошибка пометки события %s: %v", event.ID, err)
			continue
		}

		p.logger.Printf("Событие %s (%s) опубликовано в %s", event.ID, event.EventType, topic)
	}

	return nil
}
