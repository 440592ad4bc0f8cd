package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event запись транзакционного outbox. Вставляется в одной транзакции с
// доменными изменениями и публикуется фоновым обработчиком
type Event struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AggregateID uuid.UUID      `json:"aggregate_id" gorm:"type:uuid;not null;index"`
	EventType   string         `json:"event_type" gorm:"type:varchar(255);not null"`
	EventData   datatypes.JSON `json:"event_data" gorm:"type:jsonb;not null"`
	Processed   bool           `json:"processed" gorm:"not null;default:false;index"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
}

// TableName задает имя таблицы outbox
func (Event) TableName() string {
	return "outbox_events"
}

// Append добавляет событие в outbox внутри переданной транзакции
func Append(tx *gorm.DB, aggregateID uuid.UUID, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка маршалинга события %s: %w", eventType, err)
	}

	event := Event{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		EventData:   data,
		Processed:   false,
		CreatedAt:   time.Now(),
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("ошибка записи события %s в outbox: %w", eventType, err)
	}
	return nil
}

// TopicForEvent возвращает топик для публикации события по его типу
func TopicForEvent(eventType string) string {
	switch eventType {
	case "OrderCreated":
		return "order-events"
	case "PaymentProcessed":
		return "payment-events"
	case "InventoryReserved":
		return "inventory-events"
	default:
		return "domain-events"
	}
}
