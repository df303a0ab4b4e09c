package models

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the hosted identity provider just enough to anchor referral
// ownership and the order history view. It is never the source of truth
// for authentication.
type User struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`

	// ExternalRef is the identity-provider user id, or the checkout email
	// for guest buyers. It is the same value orders carry as BuyerRef.
	ExternalRef string `gorm:"size:255;not null;unique" json:"external_ref"`

	Email    string `gorm:"size:255" json:"email"`
	FullName string `gorm:"size:255" json:"full_name"`

	ReferralCodeID *uuid.UUID    `json:"referral_code_id,omitempty"`
	ReferralCode   *ReferralCode `gorm:"foreignkey:ReferralCodeID" json:"referral_code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
