package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DiscountKindPercentage = "percentage"
	DiscountKindFixed      = "fixed"
	DiscountKindBalance    = "balance"
)

type DiscountCode struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Code string    `gorm:"size:50;not null;unique" json:"code"`
	Kind string    `gorm:"size:20;not null" json:"kind"`

	// Value is a percentage for percentage codes and an amount for fixed
	// codes. Balance-limited codes ignore it and consume RemainingBalance.
	Value decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"value"`

	ValidUntil time.Time `gorm:"not null" json:"valid_until"`

	Courses []*Course `gorm:"many2many:discount_code_courses;" json:"courses,omitempty"`

	UsageCount int `gorm:"default:0" json:"usage_count"`
	MaxUsage   int `gorm:"not null" json:"max_usage"`

	HasBalanceLimit  bool            `gorm:"default:false" json:"has_balance_limit"`
	RemainingBalance decimal.Decimal `gorm:"type:numeric(10,2);default:0.00" json:"remaining_balance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesTo reports whether the code may be used on the given course. An
// empty allow-list means the code is valid for every course.
func (d *DiscountCode) AppliesTo(courseID uuid.UUID) bool {
	if len(d.Courses) == 0 {
		return true
	}
	for _, c := range d.Courses {
		if c.ID == courseID {
			return true
		}
	}
	return false
}

// ValidOn compares the validity deadline against t date-only: a code whose
// deadline falls on t's calendar day is still valid.
func (d *DiscountCode) ValidOn(t time.Time) bool {
	deadline := time.Date(d.ValidUntil.Year(), d.ValidUntil.Month(), d.ValidUntil.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !deadline.Before(today)
}
