package repo

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/order-service/internal/entity"
	"github.com/director74/saga-orders/pkg/saga"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&entity.SagaTransaction{}))
	return db
}

func newTestSaga(t *testing.T) *saga.SagaTransaction {
	tr, err := saga.NewSagaTransaction(saga.OrderData{
		OrderID:     uuid.New(),
		CustomerID:  uuid.New(),
		ProductID:   uuid.New(),
		Quantity:    1,
		TotalAmount: 50,
	})
	assert.NoError(t, err)
	return tr
}

func TestSagaRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewSagaRepository(db)
	ctx := context.Background()

	tr := newTestSaga(t)
	tr.Status = saga.SagaStatusCompensating
	tr.CurrentStep = 2
	assert.NoError(t, tr.SetContext(saga.ContextKeyCompensationIndex, 1))

	assert.NoError(t, repo.Create(ctx, tr))

	loaded, err := repo.GetByID(ctx, tr.ID)
	assert.NoError(t, err)
	assert.Equal(t, tr.ID, loaded.ID)
	assert.Equal(t, saga.SagaStatusCompensating, loaded.Status)
	assert.Equal(t, 2, loaded.CurrentStep)
	assert.Equal(t, tr.Steps, loaded.Steps)

	var index int
	assert.NoError(t, loaded.GetContext(saga.ContextKeyCompensationIndex, &index))
	assert.Equal(t, 1, index)
}

func TestGetByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewSagaRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdatePersistsChanges(t *testing.T) {
	db := newTestDB(t)
	repo := NewSagaRepository(db)
	ctx := context.Background()

	tr := newTestSaga(t)
	assert.NoError(t, repo.Create(ctx, tr))

	tr.Status = saga.SagaStatusCompleted
	tr.CurrentStep = 4
	assert.NoError(t, repo.Update(ctx, tr))

	loaded, err := repo.GetByID(ctx, tr.ID)
	assert.NoError(t, err)
	assert.Equal(t, saga.SagaStatusCompleted, loaded.Status)
	assert.Equal(t, 4, loaded.CurrentStep)
}

func TestUnknownStatusDecodesToFailed(t *testing.T) {
	db := newTestDB(t)
	repo := NewSagaRepository(db)
	ctx := context.Background()

	tr := newTestSaga(t)
	assert.NoError(t, repo.Create(ctx, tr))

	// Портим статус напрямую в таблице
	assert.NoError(t, db.Model(&entity.SagaTransaction{}).
		Where("id = ?", tr.ID).
		Update("status", "Exploded").Error)

	loaded, err := repo.GetByID(ctx, tr.ID)
	assert.NoError(t, err)
	assert.Equal(t, saga.SagaStatusFailed, loaded.Status)
}
