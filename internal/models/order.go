package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of a rental order.
type OrderStatus string

const (
	StatusWaiting   OrderStatus = "waiting"
	StatusReady     OrderStatus = "ready"
	StatusRented    OrderStatus = "rented"
	StatusReturnNow OrderStatus = "return_now"
	StatusFinished  OrderStatus = "finished"
	StatusCanceled  OrderStatus = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusReady, StatusRented, StatusReturnNow, StatusFinished, StatusCanceled:
		return true
	}
	return false
}

// Order represents a rental order. PartnerID is copied from the product at
// creation time and never re-derived, so a later ownership change does not
// retroactively move existing orders.
type Order struct {
	ID         string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CustomerID string          `json:"customer_id" gorm:"index;type:varchar(36)"`
	PartnerID  string          `json:"partner_id" gorm:"index;type:varchar(36)"`
	ProductID  string          `json:"product_id" gorm:"index;type:varchar(36)"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    time.Time       `json:"end_date"`
	Duration   int             `json:"duration"`
	TotalPrice decimal.Decimal `json:"total_price" gorm:"type:decimal(15,2)"`
	Status     OrderStatus     `json:"status" gorm:"index;type:varchar(20)"`

	// Fulfillment fields, set by the partner during confirmation.
	PickupAddress     string `json:"pickup_address"`
	ContactNumber     string `json:"contact_number"`
	PickupTime        string `json:"pickup_time"`
	Notes             string `json:"notes"`
	ReturnInformation string `json:"return_information"`

	Product  *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Customer *User    `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Partner  *User    `json:"partner,omitempty" gorm:"foreignKey:PartnerID"`

	gorm.Model // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
