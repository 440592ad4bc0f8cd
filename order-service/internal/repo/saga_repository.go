package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/order-service/internal/entity"
	"github.com/director74/saga-orders/pkg/saga"
)

// sagaRepository реализация usecase.SagaRepository с использованием GORM
type sagaRepository struct {
	db *gorm.DB
}

// NewSagaRepository создает новый экземпляр репозитория саг
func NewSagaRepository(db *gorm.DB) *sagaRepository {
	return &sagaRepository{db: db}
}

// Create создает новую запись саги
func (r *sagaRepository) Create(ctx context.Context, transaction *saga.SagaTransaction) error {
	row, err := toRow(transaction)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("ошибка создания саги %s: %w", transaction.ID, err)
	}
	return nil
}

// GetByID получает сагу по ее ID
func (r *sagaRepository) GetByID(ctx context.Context, sagaID uuid.UUID) (*saga.SagaTransaction, error) {
	var row entity.SagaTransaction
	result := r.db.WithContext(ctx).First(&row, "id = ?", sagaID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, result.Error // Возвращаем ошибку "не найдено"
		}
		return nil, fmt.Errorf("ошибка получения саги %s: %w", sagaID, result.Error)
	}
	return fromRow(&row)
}

// Update обновляет существующую сагу
func (r *sagaRepository) Update(ctx context.Context, transaction *saga.SagaTransaction) error {
	transaction.UpdatedAt = time.Now()
	row, err := toRow(transaction)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Save(row)
	if result.Error != nil {
		return fmt.Errorf("ошибка обновления саги %s: %w", transaction.ID, result.Error)
	}
	// GORM может не вернуть ошибку, если запись не найдена при Save
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// toRow сериализует сагу в строку таблицы
func toRow(transaction *saga.SagaTransaction) (*entity.SagaTransaction, error) {
	steps, err := json.Marshal(transaction.Steps)
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга шагов саги %s: %w", transaction.ID, err)
	}
	sagaContext, err := json.Marshal(transaction.Context)
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга контекста саги %s: %w", transaction.ID, err)
	}

	return &entity.SagaTransaction{
		ID:          transaction.ID,
		Steps:       steps,
		CurrentStep: transaction.CurrentStep,
		Status:      string(transaction.Status),
		Context:     sagaContext,
		CreatedAt:   transaction.CreatedAt,
		UpdatedAt:   transaction.UpdatedAt,
	}, nil
}

// fromRow восстанавливает сагу из строки таблицы. Неизвестный статус
// трактуется как Failed, чтобы поврежденная запись не возобновляла сагу
func fromRow(row *entity.SagaTransaction) (*saga.SagaTransaction, error) {
	var steps []saga.SagaStep
	if err := json.Unmarshal(row.Steps, &steps); err != nil {
		return nil, fmt.Errorf("ошибка при десериализации шагов саги %s: %w", row.ID, err)
	}
	sagaContext := make(map[string]json.RawMessage)
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &sagaContext); err != nil {
			return nil, fmt.Errorf("ошибка при десериализации контекста саги %s: %w", row.ID, err)
		}
	}

	return &saga.SagaTransaction{
		ID:          row.ID,
		Steps:       steps,
		CurrentStep: row.CurrentStep,
		Status:      saga.ParseSagaStatus(row.Status),
		Context:     sagaContext,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
