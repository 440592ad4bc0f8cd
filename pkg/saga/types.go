package saga

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CommandType тип команды, адресованной участнику саги
type CommandType string

const (
	CommandCreateOrder         CommandType = "CreateOrder"
	CommandProcessPayment      CommandType = "ProcessPayment"
	CommandReserveInventory    CommandType = "ReserveInventory"
	CommandApproveOrder        CommandType = "ApproveOrder"
	CommandCancelOrder         CommandType = "CancelOrder"
	CommandCompensatePayment   CommandType = "CompensatePayment"
	CommandCompensateInventory CommandType = "CompensateInventory"
)

// CommandStatus статус выполнения команды в ответе участника
type CommandStatus string

const (
	StatusSuccess CommandStatus = "Success"
	StatusFailed  CommandStatus = "Failed"
	// StatusCompensated сохранен для совместимости формата: участники отвечают
	// Success на компенсирующие команды, ветвление идет по статусу самой саги
	StatusCompensated CommandStatus = "Compensated"
)

// SagaStatus статус саги
type SagaStatus string

const (
	SagaStatusStarted      SagaStatus = "Started"
	SagaStatusInProgress   SagaStatus = "InProgress"
	SagaStatusCompleted    SagaStatus = "Completed"
	SagaStatusCompensating SagaStatus = "Compensating"
	SagaStatusCompensated  SagaStatus = "Compensated"
	SagaStatusFailed       SagaStatus = "Failed"
)

// ParseSagaStatus разбирает статус саги из строки; неизвестное значение
// трактуется как Failed, чтобы поврежденная запись не возобновляла сагу
func ParseSagaStatus(s string) SagaStatus {
	switch SagaStatus(s) {
	case SagaStatusStarted, SagaStatusInProgress, SagaStatusCompleted,
		SagaStatusCompensating, SagaStatusCompensated, SagaStatusFailed:
		return SagaStatus(s)
	default:
		return SagaStatusFailed
	}
}

// Роли команды в ключе идемпотентности
const (
	RoleExecute    = "execute"
	RoleCompensate = "compensate"
)

// Ключи контекста саги
const (
	ContextKeyOrderData            = "order_data"
	ContextKeyCompensationSteps    = "compensation_steps"
	ContextKeyCompensationIndex    = "compensation_index"
	ContextKeyCompensationAttempts = "compensation_attempts"
)

// Command сообщение-команда, отправляемое оркестратором участнику
type Command struct {
	ID             uuid.UUID       `json:"id"`
	SagaID         uuid.UUID       `json:"saga_id"`
	CommandType    CommandType     `json:"command_type"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CommandReply ответ участника оркестратору
type CommandReply struct {
	ID        uuid.UUID       `json:"id"`
	CommandID uuid.UUID       `json:"command_id"`
	SagaID    uuid.UUID       `json:"saga_id"`
	Status    CommandStatus   `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SagaStep шаг плана саги: прямая команда, компенсирующая команда (если есть)
// и сервис-исполнитель
type SagaStep struct {
	CommandType      CommandType `json:"command_type"`
	CompensationType CommandType `json:"compensation_type,omitempty"`
	ServiceName      string      `json:"service_name"`
}

// SagaTransaction состояние саги: план шагов, курсор и контекст
type SagaTransaction struct {
	ID          uuid.UUID                  `json:"id"`
	Steps       []SagaStep                 `json:"steps"`
	CurrentStep int                        `json:"current_step"`
	Status      SagaStatus                 `json:"status"`
	Context     map[string]json.RawMessage `json:"context"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// OrderData данные заказа, проходящие через всю сагу
type OrderData struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	ProductID   uuid.UUID `json:"product_id"`
	Quantity    int       `json:"quantity"`
	TotalAmount float64   `json:"total_amount"`
}

// PaymentData данные платежной команды
type PaymentData struct {
	OrderID       uuid.UUID `json:"order_id"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
}

// InventoryData данные команды резервирования
type InventoryData struct {
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}
