package repositories

import (
	"time"

	"sewain/internal/models"
)

// OrderRepository defines the interface for order data access.
//
// Status writes come in two flavors: UpdateStatusFrom is a compare-and-swap
// used by the lifecycle engine so two concurrent transitions cannot both
// win, and SetStatus is the unguarded admin override.
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	ListForCustomer(customerID string) ([]models.Order, error)
	ListForPartner(partnerID string) ([]models.Order, error)
	ListAll() ([]models.Order, error)
	// UpdateFulfillment persists only the partner-editable fulfillment
	// fields of the order (pickup address, contact number, pickup time,
	// notes, return information). Status is deliberately not written here.
	UpdateFulfillment(order *models.Order) error
	// UpdateStatusFrom moves the order from one status to another, failing
	// with ErrStaleStatus if the order is not currently in `from`.
	UpdateStatusFrom(id string, from, to models.OrderStatus) error
	SetStatus(id string, status models.OrderStatus) error
	// ListExpiredRented returns orders still in the rented state whose
	// rental period elapsed at or before now.
	ListExpiredRented(now time.Time) ([]models.Order, error)
}
