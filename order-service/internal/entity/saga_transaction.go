package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SagaTransaction представляет состояние саги, хранящееся в БД.
// План шагов и контекст сериализуются в JSONB, статус хранится строкой
type SagaTransaction struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Steps       datatypes.JSON `gorm:"type:jsonb;not null"`
	CurrentStep int            `gorm:"not null;default:0"`
	Status      string         `gorm:"type:varchar(50);not null;index"`
	Context     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

// TableName задает имя таблицы для GORM
func (SagaTransaction) TableName() string {
	return "saga_transactions"
}
