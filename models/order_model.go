package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// orderTransitions is the full set of allowed status transitions. Completed
// and failed are terminal: nothing maps out of them.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusCompleted, OrderStatusFailed},
}

// CanTransitionTo reports whether a status change is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status absorbs further callbacks.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

type Order struct {
	// ID is generated at creation time: human-diagnosable, not sequential.
	ID string `gorm:"size:40;primary_key" json:"id"`

	CourseID uuid.UUID `gorm:"not null" json:"course_id"`
	Course   Course    `gorm:"foreignkey:CourseID" json:"-"`

	BuyerEmail string `gorm:"size:255;not null" json:"buyer_email"`
	// BuyerRef is the external identity-provider user id, or the buyer
	// email when no usable identity was presented.
	BuyerRef string `gorm:"size:255;not null" json:"buyer_ref"`

	Amount         decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(10,2);default:0.00" json:"discount_amount"`

	Status OrderStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	DiscountCode *string `gorm:"size:50" json:"discount_code,omitempty"`
	ReferralCode *string `gorm:"size:20" json:"referral_code,omitempty"`

	EnrollmentID      *uuid.UUID `json:"enrollment_id,omitempty"`
	EnrollmentCreated bool       `gorm:"default:false" json:"enrollment_created"`

	// ProviderOrderRef is the nonce handed to the hosted checkout page; the
	// provider echoes it back, so it doubles as the opaque order reference
	// a client can resolve.
	ProviderOrderRef  *string `gorm:"size:64;unique" json:"provider_order_ref,omitempty"`
	ProviderPaymentID *string `gorm:"size:255" json:"provider_payment_id,omitempty"`

	FailureReason *string `gorm:"size:100" json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
