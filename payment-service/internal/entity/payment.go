package entity

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus статус платежа
type PaymentStatus string

// Константы для статусов платежа
const (
	PaymentStatusProcessed PaymentStatus = "processed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment представляет платеж по заказу
type Payment struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID       uuid.UUID     `json:"order_id" gorm:"type:uuid;not null;index"`
	Amount        float64       `json:"amount" gorm:"type:decimal(12,2);not null"`
	PaymentMethod string        `json:"payment_method" gorm:"type:varchar(50);not null"`
	Status        PaymentStatus `json:"status" gorm:"type:varchar(50);not null"`
	ProcessedAt   *time.Time    `json:"processed_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
