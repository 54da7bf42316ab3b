package repositories

import (
	"errors"
	"fmt"
	"time"

	"sewain/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create creates a new order in the database.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order by its ID from the database.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// ListForCustomer retrieves the orders placed by a customer, newest first,
// with product and partner summaries preloaded.
func (r *GORMOrderRepository) ListForCustomer(customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Product").Preload("Partner").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for customer %s: %w", customerID, err)
	}
	return orders, nil
}

// ListForPartner retrieves the orders a partner has to fulfill, newest first,
// with product and customer summaries preloaded.
func (r *GORMOrderRepository) ListForPartner(partnerID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Product").Preload("Customer").
		Where("partner_id = ?", partnerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for partner %s: %w", partnerID, err)
	}
	return orders, nil
}

// ListAll retrieves every order with all related summaries preloaded.
func (r *GORMOrderRepository) ListAll() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Product").Preload("Customer").Preload("Partner").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list all orders: %w", err)
	}
	return orders, nil
}

// UpdateFulfillment persists the partner-editable fulfillment columns only.
func (r *GORMOrderRepository) UpdateFulfillment(order *models.Order) error {
	res := r.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"pickup_address":     order.PickupAddress,
			"contact_number":     order.ContactNumber,
			"pickup_time":        order.PickupTime,
			"notes":              order.Notes,
			"return_information": order.ReturnInformation,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update fulfillment for order %s: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s for fulfillment update: %w", order.ID, ErrNotFound)
	}
	return nil
}

// UpdateStatusFrom performs a compare-and-swap status transition.
func (r *GORMOrderRepository) UpdateStatusFrom(id string, from, to models.OrderStatus) error {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to update status for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return fmt.Errorf("order %s is not in status %q: %w", id, from, ErrStaleStatus)
	}
	return nil
}

// SetStatus overwrites the order status without a state precondition.
// This is the admin override path.
func (r *GORMOrderRepository) SetStatus(id string, status models.OrderStatus) error {
	res := r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to set status for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s for status set: %w", id, ErrNotFound)
	}
	return nil
}

// ListExpiredRented retrieves rented orders whose rental period has elapsed.
func (r *GORMOrderRepository) ListExpiredRented(now time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("status = ? AND end_date <= ?", models.StatusRented, now).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired rentals: %w", err)
	}
	return orders, nil
}
