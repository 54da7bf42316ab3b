package repositories

import (
	"sewain/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
	// DecrementStock atomically takes one unit of stock. It returns
	// ErrInsufficientStock when none is left, so concurrent order creation
	// cannot oversell.
	DecrementStock(id string) error
}
