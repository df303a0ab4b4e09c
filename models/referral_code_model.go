package models

import (
	"time"

	"github.com/google/uuid"
)

type ReferralCode struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Code     string    `gorm:"size:20;not null;unique" json:"code"`
	OwnerRef string    `gorm:"size:255;not null" json:"owner_ref"`

	UsageCount int `gorm:"default:0" json:"usage_count"`

	CreatedAt time.Time `json:"created_at"`
}

// ReferralRedemption records one buyer consuming one referral code on one
// order. The (code, buyer) pair is unique so a buyer cannot apply the same
// code twice.
type ReferralRedemption struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ReferralCodeID uuid.UUID `gorm:"not null;uniqueIndex:idx_referral_code_buyer" json:"referral_code_id"`
	BuyerRef       string    `gorm:"size:255;not null;uniqueIndex:idx_referral_code_buyer" json:"buyer_ref"`
	OrderID        string    `gorm:"size:40;not null;unique" json:"order_id"`

	UsageRecorded bool    `gorm:"default:false" json:"usage_recorded"`
	RewardIssued  bool    `gorm:"default:false" json:"reward_issued"`
	RewardCode    *string `gorm:"size:50" json:"reward_code,omitempty"`

	ReferralCode ReferralCode `gorm:"foreignkey:ReferralCodeID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
