package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Course struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Slug          string    `gorm:"size:255;not null;unique" json:"slug"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`

	Price         decimal.Decimal  `gorm:"type:numeric(10,2);not null" json:"price"`
	OriginalPrice *decimal.Decimal `gorm:"type:numeric(10,2)" json:"original_price,omitempty"`

	EarlyBirdPrice    *decimal.Decimal `gorm:"type:numeric(10,2)" json:"early_bird_price,omitempty"`
	EarlyBirdDeadline *time.Time       `json:"early_bird_deadline,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectivePriceAt returns the early-bird price while its deadline has not
// passed, otherwise the base price.
func (c *Course) EffectivePriceAt(t time.Time) decimal.Decimal {
	if c.EarlyBirdPrice != nil && c.EarlyBirdDeadline != nil && t.Before(*c.EarlyBirdDeadline) {
		return *c.EarlyBirdPrice
	}
	return c.Price
}
