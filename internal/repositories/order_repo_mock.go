package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"sewain/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	r.orders[order.ID] = *order
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return &order, nil
}

// ListForCustomer returns the orders placed by a customer, newest first.
func (r *MockOrderRepository) ListForCustomer(customerID string) ([]models.Order, error) {
	return r.list(func(o models.Order) bool { return o.CustomerID == customerID })
}

// ListForPartner returns the orders a partner has to fulfill, newest first.
func (r *MockOrderRepository) ListForPartner(partnerID string) ([]models.Order, error) {
	return r.list(func(o models.Order) bool { return o.PartnerID == partnerID })
}

// ListAll returns every order, newest first.
func (r *MockOrderRepository) ListAll() ([]models.Order, error) {
	return r.list(func(models.Order) bool { return true })
}

func (r *MockOrderRepository) list(keep func(models.Order) bool) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if keep(order) {
			orderList = append(orderList, order)
		}
	}
	sort.Slice(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.After(orderList[j].CreatedAt)
	})
	return orderList, nil
}

// UpdateFulfillment persists the fulfillment fields of the order.
func (r *MockOrderRepository) UpdateFulfillment(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return fmt.Errorf("order with ID %s for fulfillment update: %w", order.ID, ErrNotFound)
	}
	stored.PickupAddress = order.PickupAddress
	stored.ContactNumber = order.ContactNumber
	stored.PickupTime = order.PickupTime
	stored.Notes = order.Notes
	stored.ReturnInformation = order.ReturnInformation
	stored.UpdatedAt = time.Now()
	r.orders[order.ID] = stored
	return nil
}

// UpdateStatusFrom performs a compare-and-swap status transition under the
// repository lock, matching the conditional UPDATE of the GORM implementation.
func (r *MockOrderRepository) UpdateStatusFrom(id string, from, to models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	if order.Status != from {
		return fmt.Errorf("order %s is not in status %q: %w", id, from, ErrStaleStatus)
	}
	order.Status = to
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

// SetStatus overwrites the order status without a state precondition.
func (r *MockOrderRepository) SetStatus(id string, status models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s for status set: %w", id, ErrNotFound)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

// ListExpiredRented returns rented orders whose rental period has elapsed.
func (r *MockOrderRepository) ListExpiredRented(now time.Time) ([]models.Order, error) {
	return r.list(func(o models.Order) bool {
		return o.Status == models.StatusRented && !o.EndDate.After(now)
	})
}
