package entity

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus статус заказа
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order хранит информацию о заказе клиента и его статусе
type Order struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	CustomerID  uuid.UUID   `json:"customer_id" gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID   `json:"product_id" gorm:"type:uuid;not null"`
	Quantity    int         `json:"quantity" gorm:"not null"`
	TotalAmount float64     `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(50);not null;default:created"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CreateOrderRequest запрос на создание заказа
type CreateOrderRequest struct {
	CustomerID  uuid.UUID `json:"customer_id" binding:"required"`
	ProductID   uuid.UUID `json:"product_id" binding:"required"`
	Quantity    int       `json:"quantity" binding:"required,gt=0"`
	TotalAmount float64   `json:"total_amount" binding:"required,gt=0"`
}

// CreateOrderResponse ответ на запрос создания заказа
type CreateOrderResponse struct {
	OrderID uuid.UUID `json:"order_id"`
	SagaID  uuid.UUID `json:"saga_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}
