package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coursekit/storefront/models"
)

var oneHundred = decimal.NewFromInt(100)

// AppliedDiscount is the outcome of a successful evaluation: how much comes
// off the price and, for balance-limited codes, how much balance was
// consumed.
type AppliedDiscount struct {
	Code     string
	Kind     string
	Amount   decimal.Decimal
	Consumed decimal.Decimal
}

// EvaluateDiscount runs the business rules over an already-loaded code and
// computes the discount against the course's effective price at `now`. It
// mutates nothing; redemption state changes are the service's job.
//
// Rules run in order and each failure carries its own rejection reason:
// empty code, a second discount on the same order, expiry (date-only),
// course allow-list, then the usage cap.
func EvaluateDiscount(dc *models.DiscountCode, course *models.Course, prior []string, now time.Time) (*AppliedDiscount, error) {
	if len(prior) > 0 {
		return nil, reject(ReasonDiscountStacking, "Only one discount code may be applied per order")
	}
	if dc == nil {
		return nil, reject(ReasonCodeNotFound, "Discount code not found")
	}
	if !dc.ValidOn(now) {
		return nil, reject(ReasonCodeExpired, "Discount code has expired")
	}
	if !dc.AppliesTo(course.ID) {
		return nil, reject(ReasonCourseNotEligible, "Discount code is not valid for this course")
	}
	if dc.UsageCount >= dc.MaxUsage {
		return nil, reject(ReasonUsageCapReached, "Discount code has reached its usage limit")
	}

	price := course.EffectivePriceAt(now)

	applied := &AppliedDiscount{Code: dc.Code, Kind: dc.Kind, Consumed: decimal.Zero}

	// A balance limit overrides the kind-specific magnitude: the code is
	// worth whatever balance remains, capped at the price.
	if dc.HasBalanceLimit {
		amount := decimal.Min(dc.RemainingBalance, price)
		if amount.LessThanOrEqual(decimal.Zero) {
			return nil, reject(ReasonCodeNotUsable, "Discount code has no remaining balance")
		}
		applied.Amount = amount.Round(2)
		applied.Consumed = applied.Amount
		return applied, nil
	}

	switch dc.Kind {
	case models.DiscountKindPercentage:
		applied.Amount = price.Mul(dc.Value).Div(oneHundred).Round(2)
	case models.DiscountKindFixed:
		applied.Amount = decimal.Min(dc.Value, price).Round(2)
	default:
		return nil, reject(ReasonCodeNotUsable, "Discount code is not usable")
	}

	if applied.Amount.IsNegative() {
		applied.Amount = decimal.Zero
	}
	return applied, nil
}

// DiscountService evaluates and redeems discount codes against the store.
type DiscountService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDiscountService(db *gorm.DB) *DiscountService {
	return &DiscountService{db: db, now: time.Now}
}

func (s *DiscountService) load(tx *gorm.DB, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := tx.Preload("Courses").Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).First(&dc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reject(ReasonCodeNotFound, "Discount code not found")
		}
		return nil, err
	}
	return &dc, nil
}

func trimmed(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", reject(ReasonCodeEmpty, "Discount code is empty")
	}
	return code, nil
}

// Preview evaluates a code without consuming anything, for the checkout
// price preview.
func (s *DiscountService) Preview(code string, course *models.Course, prior []string) (*AppliedDiscount, error) {
	code, err := trimmed(code)
	if err != nil {
		return nil, err
	}
	// The stacking rule outranks the lookup: a second code is rejected as
	// stacked even when it does not exist.
	if len(prior) > 0 {
		return EvaluateDiscount(nil, course, prior, s.now())
	}
	dc, err := s.load(s.db, code)
	if err != nil {
		return nil, err
	}
	return EvaluateDiscount(dc, course, prior, s.now())
}

// Redeem evaluates a code and durably marks it used. The usage-counter
// increment and the balance decrement commit as one conditional UPDATE
// guarded by the cap and the remaining balance, so two orders racing the
// last unit cannot both win: the loser's RowsAffected is zero and the code
// is rejected rather than applied inconsistently.
func (s *DiscountService) Redeem(code string, course *models.Course, prior []string) (*AppliedDiscount, error) {
	code, err := trimmed(code)
	if err != nil {
		return nil, err
	}
	if len(prior) > 0 {
		return EvaluateDiscount(nil, course, prior, s.now())
	}

	var applied *AppliedDiscount
	err = s.db.Transaction(func(tx *gorm.DB) error {
		dc, err := s.load(tx, code)
		if err != nil {
			return err
		}

		applied, err = EvaluateDiscount(dc, course, prior, s.now())
		if err != nil {
			return err
		}

		q := tx.Model(&models.DiscountCode{}).
			Where("id = ? AND usage_count < max_usage", dc.ID)
		updates := map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
		}
		if dc.HasBalanceLimit {
			q = q.Where("remaining_balance >= ?", applied.Consumed)
			updates["remaining_balance"] = gorm.Expr("remaining_balance - ?", applied.Consumed)
		}

		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return reject(ReasonCodeNotUsable, "Discount code is no longer usable")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}
