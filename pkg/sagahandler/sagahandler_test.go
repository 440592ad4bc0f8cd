package sagahandler

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/pkg/saga"
)

type publishedMessage struct {
	Topic   string
	Key     string
	Message interface{}
}

type fakePublisher struct {
	Messages []publishedMessage
}

func (p *fakePublisher) PublishMessage(topic, key string, message interface{}) error {
	p.Messages = append(p.Messages, publishedMessage{Topic: topic, Key: key, Message: message})
	return nil
}

func (p *fakePublisher) Replies(t *testing.T) []*saga.CommandReply {
	replies := make([]*saga.CommandReply, 0, len(p.Messages))
	for _, msg := range p.Messages {
		reply, ok := msg.Message.(*saga.CommandReply)
		assert.True(t, ok)
		replies = append(replies, reply)
	}
	return replies
}

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&ProcessedCommand{}))
	return db
}

func newTestCommand(t *testing.T, commandType saga.CommandType) *saga.Command {
	sagaID := uuid.New()
	cmd, err := saga.NewCommand(sagaID, commandType, map[string]string{"k": "v"},
		saga.IdempotencyKey(sagaID, saga.RoleExecute, 0, 0))
	assert.NoError(t, err)
	return cmd
}

func marshal(t *testing.T, v interface{}) []byte {
	data, err := json.Marshal(v)
	assert.NoError(t, err)
	return data
}

func TestHandleMessagePublishesReplyAndStoresResult(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	consumer := NewCommandConsumer(db, publisher, saga.ReplyTopic, "TestService")

	cmd := newTestCommand(t, saga.CommandProcessPayment)
	consumer.Register(saga.CommandProcessPayment, func(tx *gorm.DB, c *saga.Command) (*saga.CommandReply, error) {
		return saga.NewSuccessReply(c, map[string]bool{"processed": true})
	})

	err := consumer.HandleMessage(marshal(t, cmd))

	assert.NoError(t, err)
	replies := publisher.Replies(t)
	assert.Len(t, replies, 1)
	assert.Equal(t, saga.StatusSuccess, replies[0].Status)
	assert.Equal(t, cmd.ID, replies[0].CommandID)
	assert.Equal(t, saga.ReplyTopic, publisher.Messages[0].Topic)
	assert.Equal(t, cmd.SagaID.String(), publisher.Messages[0].Key)

	var processed ProcessedCommand
	assert.NoError(t, db.First(&processed, "idempotency_key = ?", cmd.IdempotencyKey).Error)
	assert.Equal(t, cmd.ID, processed.CommandID)
	assert.JSONEq(t, `{"processed":true}`, string(processed.Result))
}

func TestHandleMessageDeduplicatesRedelivery(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	consumer := NewCommandConsumer(db, publisher, saga.ReplyTopic, "TestService")

	invocations := 0
	cmd := newTestCommand(t, saga.CommandReserveInventory)
	consumer.Register(saga.CommandReserveInventory, func(tx *gorm.DB, c *saga.Command) (*saga.CommandReply, error) {
		invocations++
		return saga.NewSuccessReply(c, map[string]int{"quantity": 3})
	})

	data := marshal(t, cmd)
	assert.NoError(t, consumer.HandleMessage(data))
	assert.NoError(t, consumer.HandleMessage(data))

	// Обработчик выполнен один раз, оба ответа несут одинаковый результат
	assert.Equal(t, 1, invocations)
	replies := publisher.Replies(t)
	assert.Len(t, replies, 2)
	assert.Equal(t, saga.StatusSuccess, replies[0].Status)
	assert.Equal(t, saga.StatusSuccess, replies[1].Status)
	assert.JSONEq(t, string(replies[0].Result), string(replies[1].Result))
}

func TestHandleMessageUnsupportedCommandType(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	consumer := NewCommandConsumer(db, publisher, saga.ReplyTopic, "TestService")

	cmd := newTestCommand(t, saga.CommandType("DeliverOrder"))

	err := consumer.HandleMessage(marshal(t, cmd))

	assert.NoError(t, err)
	replies := publisher.Replies(t)
	assert.Len(t, replies, 1)
	assert.Equal(t, saga.StatusFailed, replies[0].Status)
	assert.Equal(t, "Unsupported command type", replies[0].Error)

	// Запись идемпотентности создана даже для неподдерживаемой команды
	var count int64
	assert.NoError(t, db.Model(&ProcessedCommand{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandleMessageDomainFailureCommitsIdempotencyRow(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	consumer := NewCommandConsumer(db, publisher, saga.ReplyTopic, "TestService")

	invocations := 0
	cmd := newTestCommand(t, saga.CommandProcessPayment)
	consumer.Register(saga.CommandProcessPayment, func(tx *gorm.DB, c *saga.Command) (*saga.CommandReply, error) {
		invocations++
		return saga.NewFailedReply(c, "Payment processing failed"), nil
	})

	data := marshal(t, cmd)
	assert.NoError(t, consumer.HandleMessage(data))

	replies := publisher.Replies(t)
	assert.Len(t, replies, 1)
	assert.Equal(t, saga.StatusFailed, replies[0].Status)
	assert.Equal(t, "Payment processing failed", replies[0].Error)

	var processed ProcessedCommand
	assert.NoError(t, db.First(&processed, "idempotency_key = ?", cmd.IdempotencyKey).Error)

	// Повторная доставка не выполняет обработчик заново
	assert.NoError(t, consumer.HandleMessage(data))
	assert.Equal(t, 1, invocations)
}

func TestHandleMessageHandlerErrorRollsBack(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	consumer := NewCommandConsumer(db, publisher, saga.ReplyTopic, "TestService")

	cmd := newTestCommand(t, saga.CommandCreateOrder)
	consumer.Register(saga.CommandCreateOrder, func(tx *gorm.DB, c *saga.Command) (*saga.CommandReply, error) {
		return nil, errors.New("база недоступна")
	})

	err := consumer.HandleMessage(marshal(t, cmd))

	assert.Error(t, err)
	assert.Empty(t, publisher.Messages)

	var count int64
	assert.NoError(t, db.Model(&ProcessedCommand{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestHandleMessageSkipsPoisonPayload(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	consumer := NewCommandConsumer(db, publisher, saga.ReplyTopic, "TestService")

	err := consumer.HandleMessage([]byte("{not json"))

	assert.NoError(t, err)
	assert.Empty(t, publisher.Messages)
}

func TestCommitAndReplyRecoversFromInsertRace(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	consumer := NewCommandConsumer(db, publisher, saga.ReplyTopic, "TestService")

	cmd := newTestCommand(t, saga.CommandReserveInventory)

	// Параллельная доставка уже записала результат между проверкой и вставкой
	existing := ProcessedCommand{
		IdempotencyKey: cmd.IdempotencyKey,
		CommandID:      cmd.ID,
		Result:         []byte(`{"reserved":true}`),
	}
	assert.NoError(t, db.Create(&existing).Error)

	err := consumer.commitAndReply(cmd, func(tx *gorm.DB, c *saga.Command) (*saga.CommandReply, error) {
		return saga.NewSuccessReply(c, map[string]bool{"reserved": true})
	})

	assert.NoError(t, err)
	replies := publisher.Replies(t)
	assert.Len(t, replies, 1)
	assert.Equal(t, saga.StatusSuccess, replies[0].Status)
	assert.JSONEq(t, `{"reserved":true}`, string(replies[0].Result))
}

func TestCachedReplyFromStoredRow(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{}
	consumer := NewCommandConsumer(db, publisher, saga.ReplyTopic, "TestService")

	cmd := newTestCommand(t, saga.CommandProcessPayment)
	existing := ProcessedCommand{
		IdempotencyKey: cmd.IdempotencyKey,
		CommandID:      cmd.ID,
		Result:         []byte(`{"processed":true}`),
	}
	assert.NoError(t, db.Create(&existing).Error)

	consumer.Register(saga.CommandProcessPayment, func(tx *gorm.DB, c *saga.Command) (*saga.CommandReply, error) {
		t.Fatal("обработчик не должен вызываться для обработанной команды")
		return nil, nil
	})

	assert.NoError(t, consumer.HandleMessage(marshal(t, cmd)))

	replies := publisher.Replies(t)
	assert.Len(t, replies, 1)
	assert.Equal(t, saga.StatusSuccess, replies[0].Status)
	assert.JSONEq(t, `{"processed":true}`, string(replies[0].Result))
}
