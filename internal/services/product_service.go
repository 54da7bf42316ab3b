package services

import (
	"fmt"

	"sewain/internal/models"
	"sewain/internal/repositories"
)

// ProductService handles business logic related to products. All mutations
// are ownership-checked: a partner can only touch their own listings.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	return s.repo.GetAll()
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct lists a new product owned by the acting partner.
func (s *ProductService) CreateProduct(actor AuthContext, product *models.Product) error {
	if !actor.IsPartner() {
		return fmt.Errorf("partner role required to list products: %w", ErrForbidden)
	}
	product.PartnerID = actor.UserID
	if product.MaxRentDays < 1 || product.MaxRentDays > 30 {
		return NewValidationError("max_rent_days", "max rent days must be between 1 and 30")
	}
	if product.RentPricePerDay.IsNegative() {
		return NewValidationError("rent_price_per_day", "rent price must not be negative")
	}
	if product.Stock < 0 {
		return NewValidationError("stock", "stock must not be negative")
	}
	return s.repo.Create(product)
}

// UpdateProduct updates an existing product owned by the acting partner.
func (s *ProductService) UpdateProduct(actor AuthContext, product *models.Product) error {
	existing, err := s.repo.GetByID(product.ID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && existing.PartnerID != actor.UserID {
		return fmt.Errorf("product %s is not owned by caller: %w", product.ID, ErrForbidden)
	}
	if product.MaxRentDays < 1 || product.MaxRentDays > 30 {
		return NewValidationError("max_rent_days", "max rent days must be between 1 and 30")
	}
	// Ownership never moves through an edit.
	product.PartnerID = existing.PartnerID
	return s.repo.Update(product)
}

// DeleteProduct removes a product owned by the acting partner.
func (s *ProductService) DeleteProduct(actor AuthContext, id string) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && existing.PartnerID != actor.UserID {
		return fmt.Errorf("product %s is not owned by caller: %w", id, ErrForbidden)
	}
	return s.repo.Delete(id)
}
