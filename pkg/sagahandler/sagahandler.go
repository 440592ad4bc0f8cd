package sagahandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/pkg/messaging"
	"github.com/director74/saga-orders/pkg/saga"
)

// ProcessedCommand запись о выполненной команде для дедупликации.
// Ключ идемпотентности уникален, повторная вставка ловится по нарушению PK
type ProcessedCommand struct {
	IdempotencyKey string         `json:"idempotency_key" gorm:"type:varchar(255);primaryKey"`
	CommandID      uuid.UUID      `json:"command_id" gorm:"type:uuid;not null"`
	Result         datatypes.JSON `json:"result" gorm:"type:jsonb"`
	ProcessedAt    time.Time      `json:"processed_at" gorm:"not null"`
}

// TableName задает имя таблицы выполненных команд
func (ProcessedCommand) TableName() string {
	return "processed_commands"
}

// HandlerFunc обработчик одной команды. Выполняется внутри транзакции БД:
// возврат ошибки откатывает все изменения шага, возврат ответа (в том числе
// Failed) фиксирует их вместе с записью идемпотентности
type HandlerFunc func(tx *gorm.DB, cmd *saga.Command) (*saga.CommandReply, error)

// CommandConsumer обрабатывает команды саги на стороне сервиса-участника:
// дедупликация по ключу идемпотентности, вызов обработчика в транзакции,
// публикация ответа оркестратору
type CommandConsumer struct {
	db         *gorm.DB
	publisher  messaging.MessagePublisher
	replyTopic string
	logger     *log.Logger
	handlers   map[saga.CommandType]HandlerFunc
}

// NewCommandConsumer создает обработчик команд участника
func NewCommandConsumer(db *gorm.DB, publisher messaging.MessagePublisher, replyTopic, serviceName string) *CommandConsumer {
	return &CommandConsumer{
		db:         db,
		publisher:  publisher,
		replyTopic: replyTopic,
		logger:     log.New(log.Writer(), fmt.Sprintf("[%s] [Saga] ", serviceName), log.LstdFlags),
		handlers:   make(map[saga.CommandType]HandlerFunc),
	}
}

// Register регистрирует обработчик для типа команды
func (c *CommandConsumer) Register(commandType saga.CommandType, handler HandlerFunc) {
	c.handlers[commandType] = handler
}

// HandleMessage обрабатывает одно сообщение из топика команд.
// Возврат nil подтверждает оффсет; ошибка инфраструктуры возвращается наружу,
// чтобы сообщение было доставлено повторно
func (c *CommandConsumer) HandleMessage(data []byte) error {
	var cmd saga.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		// Нечитаемое сообщение повторной доставкой не исправить
		c.logger.Printf("Нечитаемая команда, пропускаем: %v", err)
		return nil
	}

	c.logger.Printf("SagaID=%s: получена команда %s (ключ %s)", cmd.SagaID, cmd.CommandType, cmd.IdempotencyKey)

	// Проверяем, не была ли команда уже обработана
	var processed ProcessedCommand
	err := c.db.First(&processed, "idempotency_key = ?", cmd.IdempotencyKey).Error
	if err == nil {
		c.logger.Printf("SagaID=%s: команда %s уже обработана, отправляем сохраненный результат", cmd.SagaID, cmd.CommandType)
		return c.publishReply(cachedReply(&cmd, &processed))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ошибка проверки идемпотентности: %w", err)
	}

	handler, ok := c.handlers[cmd.CommandType]
	if !ok {
		c.logger.Printf("SagaID=%s: неподдерживаемый тип команды %s", cmd.SagaID, cmd.CommandType)
		handler = func(*gorm.DB, *saga.Command) (*saga.CommandReply, error) {
			return saga.NewFailedReply(&cmd, "Unsupported command type"), nil
		}
	}

	if err := c.commitAndReply(&cmd, handler); err != nil {
		c.logger.Printf("SagaID=%s: ошибка обработки команды %s: %v", cmd.SagaID, cmd.CommandType, err)
		return err
	}
	return nil
}

// commitAndReply выполняет обработчик и запись идемпотентности в одной
// транзакции и публикует ответ. Гонка двух доставок одной команды приводит к
// нарушению уникального ключа: проигравший перечитывает сохраненный результат
func (c *CommandConsumer) commitAndReply(cmd *saga.Command, handler HandlerFunc) error {
	var reply *saga.CommandReply
	err := c.db.Transaction(func(tx *gorm.DB) error {
		var handlerErr error
		reply, handlerErr = handler(tx, cmd)
		if handlerErr != nil {
			return handlerErr
		}
		if reply == nil {
			return errors.New("обработчик не вернул ответ")
		}
		record := ProcessedCommand{
			IdempotencyKey: cmd.IdempotencyKey,
			CommandID:      cmd.ID,
			Result:         datatypes.JSON(reply.Result),
			ProcessedAt:    time.Now(),
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Параллельная доставка успела раньше, берем ее результат
			var processed ProcessedCommand
			if readErr := c.db.First(&processed, "idempotency_key = ?", cmd.IdempotencyKey).Error; readErr != nil {
				return fmt.Errorf("ошибка чтения результата после гонки вставки: %w", readErr)
			}
			return c.publishReply(cachedReply(cmd, &processed))
		}
		return err
	}

	return c.publishReply(reply)
}

// publishReply публикует ответ в топик ответов с ключом саги
func (c *CommandConsumer) publishReply(reply *saga.CommandReply) error {
	if err := c.publisher.PublishMessage(c.replyTopic, reply.SagaID.String(), reply); err != nil {
		return fmt.Errorf("ошибка публикации ответа: %w", err)
	}
	c.logger.Printf("SagaID=%s: отправлен ответ %s на команду %s", reply.SagaID, reply.Status, reply.CommandID)
	return nil
}

// cachedReply строит ответ из сохраненного результата обработанной команды
func cachedReply(cmd *saga.Command, processed *ProcessedCommand) *saga.CommandReply {
	return &saga.CommandReply{
		ID:        uuid.New(),
		CommandID: cmd.ID,
		SagaID:    cmd.SagaID,
		Status:    saga.StatusSuccess,
		Result:    json.RawMessage(processed.Result),
		CreatedAt: time.Now(),
	}
}
