package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a rentable device listed by a partner.
type Product struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	PartnerID       string          `json:"partner_id" gorm:"index;type:varchar(36)" validate:"required"`
	Name            string          `json:"name" validate:"required,min=3,max=100"`
	Description     string          `json:"description" validate:"omitempty,max=500"`
	Storage         string          `json:"storage" validate:"omitempty,max=50"`
	Color           string          `json:"color" validate:"omitempty,max=50"`
	RentPricePerDay decimal.Decimal `json:"rent_price_per_day" gorm:"type:decimal(15,2)"`
	MaxRentDays     int             `json:"max_rent_days" validate:"required,min=1,max=30"`
	Stock           int             `json:"stock" validate:"gte=0"`
	ImagePath       string          `json:"image_path" validate:"omitempty,max=255"`
	gorm.Model                      // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// ProductSummary is the slimmed-down shape embedded in order listings.
type ProductSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
}

// Summary returns the embeddable form of the product.
func (p *Product) Summary() ProductSummary {
	return ProductSummary{ID: p.ID, Name: p.Name, ImagePath: p.ImagePath}
}
