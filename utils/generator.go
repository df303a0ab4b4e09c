package utils

import (
	"crypto/rand"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coursekit/storefront/models"
)

const codeLength = 8
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// OrderIDPrefix marks every platform-generated order id.
const OrderIDPrefix = "ORD"

func randomBlock(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// Only fails when the OS entropy source is unavailable.
		panic(err)
	}
	for i := range b {
		b[i] = letterBytes[int(b[i])%len(letterBytes)]
	}
	return string(b)
}

// GenerateOrderID builds an order id that a human can read off a support
// ticket but that is not guessable from a previous one, e.g.
// ORD-20260901-7KQ2XM.
func GenerateOrderID() string {
	return fmt.Sprintf("%s-%s-%s", OrderIDPrefix, time.Now().UTC().Format("20060102"), randomBlock(6))
}

// GenerateUniqueDiscountCode loops until it finds a code no existing
// discount code uses.
func GenerateUniqueDiscountCode(tx *gorm.DB) (string, error) {
	for {
		code := randomBlock(codeLength)

		var existing models.DiscountCode
		err := tx.Where("code = ?", code).First(&existing).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return code, nil
			}
			return "", err
		}
	}
}

// GenerateUniqueReferralCode is the same loop over the referral namespace.
func GenerateUniqueReferralCode(tx *gorm.DB) (string, error) {
	for {
		code := randomBlock(codeLength)

		var existing models.ReferralCode
		err := tx.Where("code = ?", code).First(&existing).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return code, nil
			}
			return "", err
		}
	}
}
