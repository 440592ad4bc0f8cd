package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/director74/saga-orders/pkg/saga"
)

// maxCompensationAttempts предел повторов одного компенсирующего шага,
// после исчерпания сага переводится в Failed для ручного разбора
const maxCompensationAttempts = 3

// SagaOrchestrator управляет жизненным циклом саги оформления заказа:
// запускает сагу, двигает ее вперед по ответам участников и запускает
// компенсацию выполненных шагов при ошибке
type SagaOrchestrator struct {
	sagaRepo  SagaRepository
	publisher MessagePublisher
	logger    *log.Logger
}

// NewSagaOrchestrator создает новый оркестратор саг
func NewSagaOrchestrator(sagaRepo SagaRepository, publisher MessagePublisher, logger *log.Logger) *SagaOrchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[OrderService] [Orchestrator] ", log.LstdFlags)
	}

	return &SagaOrchestrator{
		sagaRepo:  sagaRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// StartSaga создает сагу, сохраняет ее и отправляет команду первого шага
func (s *SagaOrchestrator) StartSaga(ctx context.Context, order saga.OrderData) (*saga.SagaTransaction, error) {
	transaction, err := saga.NewSagaTransaction(order)
	if err != nil {
		return nil, err
	}

	if err := s.sagaRepo.Create(ctx, transaction); err != nil {
		return nil, err
	}

	step := transaction.NextStep()
	if err := s.sendStepCommand(transaction, step, transaction.CurrentStep); err != nil {
		return nil, err
	}

	s.logger.Printf("SagaID=%s: сага запущена для заказа %s", transaction.ID, order.OrderID)
	return transaction, nil
}

// HandleReply обрабатывает ответ участника из топика ответов.
// Сага сохраняется только после успешной отправки следующей команды: при
// ошибке отправки оффсет не подтверждается и повторная доставка ответа
// отправит команду заново
func (s *SagaOrchestrator) HandleReply(data []byte) error {
	var reply saga.CommandReply
	if err := json.Unmarshal(data, &reply); err != nil {
		// Нечитаемый ответ повторной доставкой не исправить
		s.logger.Printf("Нечитаемый ответ, пропускаем: %v", err)
		return nil
	}

	ctx := context.Background()
	transaction, err := s.sagaRepo.GetByID(ctx, reply.SagaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Printf("SagaID=%s: сага не найдена, ответ отброшен", reply.SagaID)
			return nil
		}
		return err
	}

	s.logger.Printf("SagaID=%s: получен ответ %s на команду %s (статус саги %s)",
		transaction.ID, reply.Status, reply.CommandID, transaction.Status)

	switch {
	case reply.Status == saga.StatusFailed && transaction.Status == saga.SagaStatusCompensating:
		err = s.retryCompensation(transaction, &reply)
	case reply.Status == saga.StatusFailed:
		transaction.Status = saga.SagaStatusCompensating
		s.logger.Printf("SagaID=%s: шаг %d завершился ошибкой (%s), начинаем компенсацию",
			transaction.ID, transaction.CurrentStep, reply.Error)
		err = s.startCompensation(transaction)
	case transaction.Status == saga.SagaStatusCompensating:
		// Success и Compensated во время компенсации двигают курсор компенсации
		err = s.advanceCompensation(transaction)
	case reply.Status == saga.StatusSuccess:
		err = s.advanceForward(transaction)
	default:
		s.logger.Printf("SagaID=%s: неожиданный статус ответа %s, игнорируем", transaction.ID, reply.Status)
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.sagaRepo.Update(ctx, transaction); err != nil {
		return fmt.Errorf("ошибка сохранения саги %s: %w", transaction.ID, err)
	}
	return nil
}

// advanceForward двигает сагу на следующий прямой шаг или завершает ее
func (s *SagaOrchestrator) advanceForward(transaction *saga.SagaTransaction) error {
	transaction.AdvanceStep()

	step := transaction.NextStep()
	if step == nil {
		transaction.Status = saga.SagaStatusCompleted
		s.logger.Printf("SagaID=%s: все шаги выполнены, сага завершена", transaction.ID)
		return nil
	}

	transaction.Status = saga.SagaStatusInProgress
	return s.sendStepCommand(transaction, step, transaction.CurrentStep)
}

// startCompensation строит план компенсации из выполненных шагов и
// отправляет первую компенсирующую команду
func (s *SagaOrchestrator) startCompensation(transaction *saga.SagaTransaction) error {
	steps := transaction.CompensationSteps()
	if err := transaction.SetContext(saga.ContextKeyCompensationSteps, steps); err != nil {
		return err
	}
	if err := transaction.SetContext(saga.ContextKeyCompensationIndex, 0); err != nil {
		return err
	}
	if err := transaction.SetContext(saga.ContextKeyCompensationAttempts, 0); err != nil {
		return err
	}
	return s.processNextCompensation(transaction)
}

// advanceCompensation сдвигает курсор компенсации после успешного
// компенсирующего шага
func (s *SagaOrchestrator) advanceCompensation(transaction *saga.SagaTransaction) error {
	var index int
	if err := transaction.GetContext(saga.ContextKeyCompensationIndex, &index); err != nil {
		return err
	}
	if err := transaction.SetContext(saga.ContextKeyCompensationIndex, index+1); err != nil {
		return err
	}
	if err := transaction.SetContext(saga.ContextKeyCompensationAttempts, 0); err != nil {
		return err
	}
	return s.processNextCompensation(transaction)
}

// retryCompensation повторяет текущий компенсирующий шаг с новым ключом
// идемпотентности; после maxCompensationAttempts неудач сага переводится в Failed
func (s *SagaOrchestrator) retryCompensation(transaction *saga.SagaTransaction, reply *saga.CommandReply) error {
	attempts := 0
	_ = transaction.GetContext(saga.ContextKeyCompensationAttempts, &attempts)
	attempts++

	if attempts >= maxCompensationAttempts {
		transaction.Status = saga.SagaStatusFailed
		s.logger.Printf("SagaID=%s: компенсация не удалась после %d попыток (%s), сага переведена в Failed",
			transaction.ID, attempts, reply.Error)
		return nil
	}

	if err := transaction.SetContext(saga.ContextKeyCompensationAttempts, attempts); err != nil {
		return err
	}
	s.logger.Printf("SagaID=%s: повтор компенсирующего шага, попытка %d из %d",
		transaction.ID, attempts+1, maxCompensationAttempts)
	return s.processNextCompensation(transaction)
}

// processNextCompensation отправляет текущую компенсирующую команду или
// завершает компенсацию, когда план исчерпан
func (s *SagaOrchestrator) processNextCompensation(transaction *saga.SagaTransaction) error {
	var steps []saga.SagaStep
	if err := transaction.GetContext(saga.ContextKeyCompensationSteps, &steps); err != nil {
		return err
	}
	var index int
	if err := transaction.GetContext(saga.ContextKeyCompensationIndex, &index); err != nil {
		return err
	}

	if index >= len(steps) {
		transaction.Status = saga.SagaStatusCompensated
		s.logger.Printf("SagaID=%s: компенсация завершена", transaction.ID)
		return nil
	}

	attempts := 0
	_ = transaction.GetContext(saga.ContextKeyCompensationAttempts, &attempts)

	step := steps[index]
	cmd, err := s.buildCommand(transaction, step.CompensationType, saga.RoleCompensate, index, attempts)
	if err != nil {
		return err
	}
	return s.sendCommand(cmd, step.ServiceName)
}

// sendStepCommand отправляет прямую команду шага плана
func (s *SagaOrchestrator) sendStepCommand(transaction *saga.SagaTransaction, step *saga.SagaStep, index int) error {
	cmd, err := s.buildCommand(transaction, step.CommandType, saga.RoleExecute, index, 0)
	if err != nil {
		return err
	}
	return s.sendCommand(cmd, step.ServiceName)
}

// buildCommand строит команду участнику: нагрузка выводится из данных заказа
// в контексте саги по типу команды
func (s *SagaOrchestrator) buildCommand(transaction *saga.SagaTransaction, commandType saga.CommandType, role string, stepIndex, attempt int) (*saga.Command, error) {
	var order saga.OrderData
	if err := transaction.GetContext(saga.ContextKeyOrderData, &order); err != nil {
		return nil, err
	}

	var payload interface{}
	switch commandType {
	case saga.CommandCreateOrder, saga.CommandApproveOrder, saga.CommandCancelOrder:
		payload = order
	case saga.CommandProcessPayment, saga.CommandCompensatePayment:
		payload = saga.PaymentData{
			OrderID:       order.OrderID,
			Amount:        order.TotalAmount,
			PaymentMethod: "credit_card",
		}
	case saga.CommandReserveInventory, saga.CommandCompensateInventory:
		payload = saga.InventoryData{
			OrderID:   order.OrderID,
			ProductID: order.ProductID,
			Quantity:  order.Quantity,
		}
	default:
		return nil, fmt.Errorf("неподдерживаемый тип команды: %s", commandType)
	}

	return saga.NewCommand(transaction.ID, commandType, payload, saga.IdempotencyKey(transaction.ID, role, stepIndex, attempt))
}

// sendCommand публикует команду в топик команд сервиса с ключом саги
func (s *SagaOrchestrator) sendCommand(cmd *saga.Command, serviceName string) error {
	topic := saga.CommandTopic(serviceName)
	if err := s.publisher.PublishMessage(topic, cmd.SagaID.String(), cmd); err != nil {
		s.logger.Printf("SagaID=%s: ошибка отправки команды %s в %s: %v", cmd.SagaID, cmd.CommandType, topic, err)
		return fmt.Errorf("ошибка отправки команды %s: %w", cmd.CommandType, err)
	}
	s.logger.Printf("SagaID=%s: команда %s отправлена в %s", cmd.SagaID, cmd.CommandType, topic)
	return nil
}
