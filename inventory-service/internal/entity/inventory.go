package entity

import (
	"time"

	"github.com/google/uuid"
)

// Inventory представляет остаток товара на складе
type Inventory struct {
	ProductID         uuid.UUID `json:"product_id" gorm:"type:uuid;primaryKey"`
	AvailableQuantity int       `json:"available_quantity" gorm:"not null;default:0"`
	ReservedQuantity  int       `json:"reserved_quantity" gorm:"not null;default:0"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName задает имя таблицы остатков
func (Inventory) TableName() string {
	return "inventory"
}

// ReservationStatus статус резервирования
type ReservationStatus string

// Константы для статусов резервирования
const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation представляет резервирование товара под заказ
type Reservation struct {
	ID        uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID         `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID         `json:"product_id" gorm:"type:uuid;not null;index"`
	Quantity  int               `json:"quantity" gorm:"not null"`
	Status    ReservationStatus `json:"status" gorm:"type:varchar(50);not null"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
