package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coursekit/storefront/models"
	"github.com/coursekit/storefront/utils"
)

// Reward issued to a buyer who redeemed someone else's referral code, as a
// balance-limited discount code on their next purchase.
var ReferralRewardAmount = decimal.NewFromInt(5)

const referralRewardValidityMonths = 12
const referralRewardMaxUsage = 10

// ReferralService is the ledger around referral codes: it validates and
// records redemptions on the critical path, and increments usage / issues
// reward codes as best-effort post-payment side effects.
type ReferralService struct {
	db *gorm.DB
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{db: db}
}

// Validate checks a referral code for a buyer: it must exist, must not be
// the buyer's own code, and must not have been applied by this buyer
// before. It mutates nothing.
func (s *ReferralService) Validate(code string, buyerRef string) (*models.ReferralCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, reject(ReasonCodeEmpty, "Referral code is empty")
	}

	var rc models.ReferralCode
	err := s.db.Where("UPPER(code) = ?", strings.ToUpper(code)).First(&rc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reject(ReasonReferralNotFound, "Referral code not found")
		}
		return nil, err
	}

	if rc.OwnerRef == buyerRef {
		return nil, reject(ReasonSelfReferral, "You cannot redeem your own referral code")
	}

	var count int64
	if err := s.db.Model(&models.ReferralRedemption{}).
		Where("referral_code_id = ? AND buyer_ref = ?", rc.ID, buyerRef).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, reject(ReasonReferralApplied, "Referral code already applied")
	}

	return &rc, nil
}

// RecordRedemption links a validated code to the order carrying it. The
// unique (code, buyer) index backstops the Validate check under
// concurrency.
func (s *ReferralService) RecordRedemption(rc *models.ReferralCode, buyerRef string, orderID string) error {
	redemption := models.ReferralRedemption{
		ReferralCodeID: rc.ID,
		BuyerRef:       buyerRef,
		OrderID:        orderID,
	}
	return s.db.Create(&redemption).Error
}

// IncrementUsage bumps the referral code's usage counter for the order's
// redemption, once. Replays find usage_recorded already set and do nothing.
func (s *ReferralService) IncrementUsage(orderID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var redemption models.ReferralRedemption
		if err := tx.Where("order_id = ?", orderID).First(&redemption).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		res := tx.Model(&models.ReferralRedemption{}).
			Where("id = ? AND usage_recorded = ?", redemption.ID, false).
			Update("usage_recorded", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		return tx.Model(&models.ReferralCode{}).
			Where("id = ?", redemption.ReferralCodeID).
			Update("usage_count", gorm.Expr("usage_count + 1")).Error
	})
}

// EnsureOwnCode guarantees the buyer has a referral code of their own to
// share, minting one on their first completed purchase. The User row is
// created on first sight and anchors the code ownership; replays return
// the code minted the first time.
func (s *ReferralService) EnsureOwnCode(buyerRef, email, fullName string) (string, error) {
	var code string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("external_ref = ?", buyerRef).First(&user).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			user = models.User{ExternalRef: buyerRef, Email: email, FullName: fullName}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		}

		if user.ReferralCodeID != nil {
			var existing models.ReferralCode
			if err := tx.First(&existing, "id = ?", *user.ReferralCodeID).Error; err != nil {
				return err
			}
			code = existing.Code
			return nil
		}

		minted, err := utils.GenerateUniqueReferralCode(tx)
		if err != nil {
			return err
		}
		rc := models.ReferralCode{Code: minted, OwnerRef: buyerRef}
		if err := tx.Create(&rc).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("referral_code_id", rc.ID).Error; err != nil {
			return err
		}

		code = minted
		return nil
	})
	return code, err
}

// IssueRewardCode mints a balance-limited discount code for the buyer who
// consumed a referral code on this order. Idempotent: a replay returns the
// code minted the first time.
func (s *ReferralService) IssueRewardCode(orderID string) (string, error) {
	var rewardCode string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var redemption models.ReferralRedemption
		if err := tx.Where("order_id = ?", orderID).First(&redemption).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if redemption.RewardIssued {
			if redemption.RewardCode != nil {
				rewardCode = *redemption.RewardCode
			}
			return nil
		}

		code, err := utils.GenerateUniqueDiscountCode(tx)
		if err != nil {
			return err
		}

		reward := models.DiscountCode{
			Code:             code,
			Kind:             models.DiscountKindBalance,
			Value:            decimal.Zero,
			ValidUntil:       time.Now().AddDate(0, referralRewardValidityMonths, 0),
			MaxUsage:         referralRewardMaxUsage,
			HasBalanceLimit:  true,
			RemainingBalance: ReferralRewardAmount,
		}
		if err := tx.Create(&reward).Error; err != nil {
			return err
		}

		redemption.RewardIssued = true
		redemption.RewardCode = &code
		if err := tx.Save(&redemption).Error; err != nil {
			return err
		}

		rewardCode = code
		return nil
	})
	return rewardCode, err
}
