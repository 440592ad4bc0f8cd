package saga

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderSagaSteps фиксированный план саги оформления заказа:
// создание заказа → оплата → резервирование → подтверждение
func OrderSagaSteps() []SagaStep {
	return []SagaStep{
		{CommandType: CommandCreateOrder, CompensationType: CommandCancelOrder, ServiceName: "order-service"},
		{CommandType: CommandProcessPayment, CompensationType: CommandCompensatePayment, ServiceName: "payment-service"},
		{CommandType: CommandReserveInventory, CompensationType: CommandCompensateInventory, ServiceName: "inventory-service"},
		{CommandType: CommandApproveOrder, ServiceName: "order-service"},
	}
}

// NewSagaTransaction создает новую сагу оформления заказа с данными заказа в контексте
func NewSagaTransaction(order OrderData) (*SagaTransaction, error) {
	orderBytes, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга данных заказа: %w", err)
	}

	now := time.Now()
	return &SagaTransaction{
		ID:          uuid.New(),
		Steps:       OrderSagaSteps(),
		CurrentStep: 0,
		Status:      SagaStatusStarted,
		Context: map[string]json.RawMessage{
			ContextKeyOrderData: orderBytes,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NextStep возвращает текущий шаг плана или nil, если все шаги пройдены
func (s *SagaTransaction) NextStep() *SagaStep {
	if s.CurrentStep >= len(s.Steps) {
		return nil
	}
	return &s.Steps[s.CurrentStep]
}

// AdvanceStep сдвигает курсор на следующий шаг
func (s *SagaTransaction) AdvanceStep() {
	if s.CurrentStep < len(s.Steps) {
		s.CurrentStep++
	}
}

// CompensationSteps возвращает компенсирующие шаги для уже выполненных
// прямых шагов в обратном порядке. Шаги без компенсации пропускаются
func (s *SagaTransaction) CompensationSteps() []SagaStep {
	steps := make([]SagaStep, 0, s.CurrentStep)
	for i := s.CurrentStep - 1; i >= 0; i-- {
		if s.Steps[i].CompensationType != "" {
			steps = append(steps, s.Steps[i])
		}
	}
	return steps
}

// SetContext сериализует значение и сохраняет его в контексте саги
func (s *SagaTransaction) SetContext(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка маршалинга значения контекста %s: %w", key, err)
	}
	if s.Context == nil {
		s.Context = make(map[string]json.RawMessage)
	}
	s.Context[key] = data
	return nil
}

// GetContext извлекает значение из контекста саги
func (s *SagaTransaction) GetContext(key string, dst interface{}) error {
	data, ok := s.Context[key]
	if !ok {
		return fmt.Errorf("ключ %s отсутствует в контексте саги", key)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("ошибка при десериализации контекста %s: %w", key, err)
	}
	return nil
}

// IdempotencyKey строит детерминированный ключ идемпотентности команды.
// Ключ одинаков для повторной отправки той же логической попытки шага,
// поэтому участник дедуплицирует повторы оркестратора
func IdempotencyKey(sagaID uuid.UUID, role string, stepIndex, attempt int) string {
	return fmt.Sprintf("%s_%s-%d-%d", sagaID, role, stepIndex, attempt)
}

// NewCommand создает команду участнику с сериализованной нагрузкой
func NewCommand(sagaID uuid.UUID, commandType CommandType, payload interface{}, idempotencyKey string) (*Command, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга нагрузки команды: %w", err)
	}

	return &Command{
		ID:             uuid.New(),
		SagaID:         sagaID,
		CommandType:    commandType,
		Payload:        payloadBytes,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}, nil
}

// NewSuccessReply создает успешный ответ на команду
func NewSuccessReply(cmd *Command, result interface{}) (*CommandReply, error) {
	var resultBytes json.RawMessage
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга результата: %w", err)
		}
		resultBytes = data
	}

	return &CommandReply{
		ID:        uuid.New(),
		CommandID: cmd.ID,
		SagaID:    cmd.SagaID,
		Status:    StatusSuccess,
		Result:    resultBytes,
		CreatedAt: time.Now(),
	}, nil
}

// NewFailedReply создает ответ об ошибке выполнения команды
func NewFailedReply(cmd *Command, errMsg string) *CommandReply {
	return &CommandReply{
		ID:        uuid.New(),
		CommandID: cmd.ID,
		SagaID:    cmd.SagaID,
		Status:    StatusFailed,
		Error:     errMsg,
		CreatedAt: time.Now(),
	}
}

// CommandTopic возвращает топик команд сервиса-участника
func CommandTopic(serviceName string) string {
	return serviceName + "-commands"
}

// ReplyTopic топик ответов участников оркестратору
const ReplyTopic = "order-replies"
