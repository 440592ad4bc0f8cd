package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type publishedMessage struct {
	Topic string
	Key   string
}

type fakePublisher struct {
	Messages  []publishedMessage
	FailTopic string
}

func (p *fakePublisher) PublishMessage(topic, key string, message interface{}) error {
	if topic == p.FailTopic {
		return errors.New("kafka недоступна")
	}
	p.Messages = append(p.Messages, publishedMessage{Topic: topic, Key: key})
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&Event{}))
	return db
}

func appendEvent(t *testing.T, db *gorm.DB, aggregateID uuid.UUID, eventType string, createdAt time.Time) {
	event := Event{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		EventData:   []byte(`{"ok":true}`),
		CreatedAt:   createdAt,
	}
	assert.NoError(t, db.Create(&event).Error)
}

func TestTopicForEvent(t *testing.T) {
	assert.Equal(t, "order-events", TopicForEvent("OrderCreated"))
	assert.Equal(t, "payment-events", TopicForEvent("PaymentProcessed"))
	assert.Equal(t, "inventory-events", TopicForEvent("InventoryReserved"))
	assert.Equal(t, "domain-events", TopicForEvent("OrderShipped"))
}

func TestAppendInsertsUnprocessedEvent(t *testing.T) {
	db := newTestDB(t)
	aggregateID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return Append(tx, aggregateID, "OrderCreated", map[string]string{"status": "created"})
	})

	assert.NoError(t, err)
	var event Event
	assert.NoError(t, db.First(&event).Error)
	assert.Equal(t, aggregateID, event.AggregateID)
	assert.Equal(t, "OrderCreated", event.EventType)
	assert.False(t, event.Processed)
	assert.JSONEq(t, `{"status":"created"}`, string(event.EventData))
}

func TestProcessPendingPublishesInOrderAndMarks(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	p := NewPublisher(db, publisher, "TestService")

	firstAggregate := uuid.New()
	secondAggregate := uuid.New()
	base := time.Now().Add(-time.Minute)
	appendEvent(t, db, firstAggregate, "OrderCreated", base)
	appendEvent(t, db, secondAggregate, "PaymentProcessed", base.Add(time.Second))

	assert.NoError(t, p.processPending(context.Background()))

	assert.Len(t, publisher.Messages, 2)
	assert.Equal(t, "order-events", publisher.Messages[0].Topic)
	assert.Equal(t, firstAggregate.String(), publisher.Messages[0].Key)
	assert.Equal(t, "payment-events", publisher.Messages[1].Topic)
	assert.Equal(t, secondAggregate.String(), publisher.Messages[1].Key)

	var pending int64
	assert.NoError(t, db.Model(&Event{}).Where("processed = ?", false).Count(&pending).Error)
	assert.Equal(t, int64(0), pending)
}

func TestProcessPendingSkipsAlreadyProcessed(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	p := NewPublisher(db, publisher, "TestService")

	event := Event{
		ID:          uuid.New(),
		AggregateID: uuid.New(),
		EventType:   "OrderCreated",
		EventData:   []byte(`{}`),
		Processed:   true,
		CreatedAt:   time.Now(),
	}
	assert.NoError(t, db.Create(&event).Error)

	assert.NoError(t, p.processPending(context.Background()))

	assert.Empty(t, publisher.Messages)
}

func TestProcessPendingLeavesFailedEventForNextTick(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{FailTopic: "payment-events"}
	p := NewPublisher(db, publisher, "TestService")

	base := time.Now().Add(-time.Minute)
	appendEvent(t, db, uuid.New(), "PaymentProcessed", base)
	appendEvent(t, db, uuid.New(), "OrderCreated", base.Add(time.Second))

	assert.NoError(t, p.processPending(context.Background()))

	// Провал одного события не блокирует остальные
	assert.Len(t, publisher.Messages, 1)
	assert.Equal(t, "order-events", publisher.Messages[0].Topic)

	var pending int64
	assert.NoError(t, db.Model(&Event{}).Where("processed = ?", false).Count(&pending).Error)
	assert.Equal(t, int64(1), pending)

	// После восстановления брокера событие уходит на следующем тике
	publisher.FailTopic = ""
	assert.NoError(t, p.processPending(context.Background()))
	assert.Len(t, publisher.Messages, 2)

	assert.NoError(t, db.Model(&Event{}).Where("processed = ?", false).Count(&pending).Error)
	assert.Equal(t, int64(0), pending)
}

func TestProcessPendingRespectsBatchSize(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	p := NewPublisher(db, publisher, "TestService")
	p.batchSize = 2

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		appendEvent(t, db, uuid.New(), "OrderCreated", base.Add(time.Duration(i)*time.Second))
	}

	assert.NoError(t, p.processPending(context.Background()))

	assert.Len(t, publisher.Messages, 2)
}
