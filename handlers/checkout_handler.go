package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursekit/storefront/configs"
	"github.com/coursekit/storefront/middleware"
	"github.com/coursekit/storefront/models"
	"github.com/coursekit/storefront/payments"
	"github.com/coursekit/storefront/services"
)

type CheckoutHandler struct {
	cfg       *configs.AppConfig
	courses   CourseStore
	orders    OrderStore
	discounts DiscountEvaluator
	referrals ReferralLedger
	enroll    Enroller
	gateway   CheckoutGateway
	mailer    Mailer
}

func NewCheckoutHandler(cfg *configs.AppConfig, courses CourseStore, orders OrderStore, discounts DiscountEvaluator, referrals ReferralLedger, enroll Enroller, gateway CheckoutGateway, mailer Mailer) *CheckoutHandler {
	return &CheckoutHandler{
		cfg:       cfg,
		courses:   courses,
		orders:    orders,
		discounts: discounts,
		referrals: referrals,
		enroll:    enroll,
		gateway:   gateway,
		mailer:    mailer,
	}
}

type CheckoutRequest struct {
	CourseID      string   `json:"course_id" validate:"required,uuid"`
	Email         string   `json:"email" validate:"required,email"`
	FullName      string   `json:"full_name" validate:"required"`
	DiscountCodes []string `json:"discount_codes,omitempty"`
	ReferralCode  string   `json:"referral_code,omitempty"`
	Locale        string   `json:"locale,omitempty"`
}

func rejectionResponse(c *fiber.Ctx, r *services.Rejection) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": r.Message, "reason": r.Reason})
}

// buyerRef resolves the buyer identity: the identity provider's user id
// when a valid token was presented, otherwise the checkout email.
func buyerRef(c *fiber.Ctx, email string) string {
	if ref, ok := c.Locals(middleware.BuyerRefKey).(string); ok && ref != "" {
		return ref
	}
	return email
}

// Checkout is the payment-initiation endpoint: it prices the order, applies
// at most one discount code and one referral code, and either completes the
// purchase on the spot (free path) or hands back a signed hosted-checkout
// form for the gateway.
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// Missing gateway credentials are a configuration fault, not a buyer
	// error, and must surface before any state is written.
	if !h.cfg.GatewayConfigured() {
		log.Println("🔥 Checkout attempted without gateway credentials configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Payment gateway is not configured"})
	}

	courseID, _ := uuid.Parse(req.CourseID)
	course, err := h.courses.FindByID(courseID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	buyer := buyerRef(c, req.Email)

	var referral *models.ReferralCode
	if req.ReferralCode != "" {
		referral, err = h.referrals.Validate(req.ReferralCode, buyer)
		if err != nil {
			if r, ok := services.AsRejection(err); ok {
				return rejectionResponse(c, r)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to validate referral code"})
		}
	}

	// Pricing runs in two phases. Everything here is evaluation only: no
	// code is consumed until the order row exists and every other step
	// that can fail has passed, so a rejected or aborted checkout never
	// burns a buyer's code.
	price := course.EffectivePriceAt(time.Now())
	discountTotal := decimal.Zero
	var appliedCodes []string
	var appliedDiscount *services.AppliedDiscount

	for _, code := range req.DiscountCodes {
		applied, err := h.discounts.Preview(code, course, appliedCodes)
		if err != nil {
			if r, ok := services.AsRejection(err); ok {
				return rejectionResponse(c, r)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to apply discount code"})
		}
		appliedCodes = append(appliedCodes, applied.Code)
		appliedDiscount = applied
		discountTotal = discountTotal.Add(applied.Amount)
	}

	amount := price.Sub(discountTotal)
	free := amount.LessThanOrEqual(decimal.Zero)
	if free {
		amount = decimal.Zero
	}

	order := &models.Order{
		CourseID:       course.ID,
		BuyerEmail:     req.Email,
		BuyerRef:       buyer,
		Amount:         amount,
		DiscountAmount: discountTotal,
		Status:         models.OrderStatusPending,
	}
	if appliedDiscount != nil {
		order.DiscountCode = &appliedDiscount.Code
	}
	if referral != nil {
		order.ReferralCode = &referral.Code
	}

	// The order row has to exist before anyone is redirected anywhere; an
	// unrecorded order can never be reconciled by the callback.
	if err := h.orders.Create(order); err != nil {
		log.Printf("🔥 CRITICAL: Failed to create order for course %s: %v", course.Slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create order"})
	}

	if referral != nil {
		if err := h.referrals.RecordRedemption(referral, buyer, order.ID); err != nil {
			log.Printf("🔥 Failed to record referral redemption for order %s: %v", order.ID, err)
		}
	}

	// Building the hosted-checkout form is pure signing; do it before the
	// codes are consumed so an initiation failure cannot strand a spent
	// redemption.
	var checkout *payments.HostedCheckout
	var nonce string
	if !free {
		checkout, nonce, err = h.gateway.BuildHostedCheckout(order, course, req.Locale)
		if err != nil {
			log.Printf("🔥 CRITICAL: Failed to build hosted checkout for order %s: %v", order.ID, err)
			if err := h.orders.MarkFailed(order.ID, "initiation_failed"); err != nil {
				log.Printf("🔥 Failed to mark order %s failed: %v", order.ID, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Payment could not be initiated, please try again."})
		}
	}

	// Phase two: consume what phase one only evaluated. A code that
	// vanished in the meantime (another order raced the last unit) fails
	// the whole attempt and the order with it.
	if err := h.redeemAppliedCodes(order, course, appliedCodes); err != nil {
		if r, ok := services.AsRejection(err); ok {
			return rejectionResponse(c, r)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to apply discount code"})
	}

	if free {
		if err := h.orders.MarkCompleted(order.ID, ""); err != nil {
			log.Printf("🔥 Failed to complete free order %s: %v", order.ID, err)
		} else {
			order.Status = models.OrderStatusCompleted
		}
		h.completeFreeOrder(order, course, req.FullName)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"order_id":           order.ID,
			"amount":             amount.StringFixed(2),
			"redirect_to_direct": true,
			"redirect_url":       successURL(h.cfg.FrontendBaseURL, order, course),
		})
	}

	if err := h.orders.SetProviderOrderRef(order.ID, nonce); err != nil {
		log.Printf("🔥 Failed to store provider order ref for order %s: %v", order.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":    order.ID,
		"amount":      order.Amount.StringFixed(2),
		"form_action": checkout.FormAction,
		"form_data":   checkout.FormData,
	})
}

// redeemAppliedCodes durably consumes the codes that already passed
// evaluation, marking the order failed if any of them can no longer be
// redeemed.
func (h *CheckoutHandler) redeemAppliedCodes(order *models.Order, course *models.Course, codes []string) error {
	var redeemed []string
	for _, code := range codes {
		if _, err := h.discounts.Redeem(code, course, redeemed); err != nil {
			reason := "discount_redemption_failed"
			if r, ok := services.AsRejection(err); ok {
				reason = r.Reason
			}
			log.Printf("🔥 Failed to redeem discount code for order %s: %v", order.ID, err)
			if err := h.orders.MarkFailed(order.ID, reason); err != nil {
				log.Printf("🔥 Failed to mark order %s failed: %v", order.ID, err)
			}
			return err
		}
		redeemed = append(redeemed, code)
	}
	return nil
}

// completeFreeOrder runs the zero-amount fast path synchronously. It must
// land in the same end state as a successful gateway callback: completed
// order, active enrollment, best-effort referral and email side effects.
func (h *CheckoutHandler) completeFreeOrder(order *models.Order, course *models.Course, buyerName string) {
	enrollmentID, outcome, err := h.enroll.EnsureEnrolled(order.BuyerRef, course.ID)
	if err != nil {
		log.Printf("🔥 CRITICAL: Free-path enrollment failed for order %s: %v", order.ID, err)
	} else {
		log.Printf("✅ Enrollment ensured for order %s (%s)", order.ID, outcome)
		if err := h.orders.AttachEnrollment(order.ID, enrollmentID); err != nil {
			log.Printf("🔥 Failed to attach enrollment to order %s: %v", order.ID, err)
		}
	}

	runPostCommitEvents(order, course, buyerName, h.referrals, h.mailer)
}

type PreviewRequest struct {
	CourseID      string   `json:"course_id" validate:"required,uuid"`
	Email         string   `json:"email" validate:"required,email"`
	DiscountCodes []string `json:"discount_codes,omitempty"`
	ReferralCode  string   `json:"referral_code,omitempty"`
}

// Preview prices a checkout without consuming anything, so the UI can show
// the final amount and precise per-code rejection reasons before the buyer
// commits.
func (h *CheckoutHandler) Preview(c *fiber.Ctx) error {
	var req PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	courseID, _ := uuid.Parse(req.CourseID)
	course, err := h.courses.FindByID(courseID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	buyer := buyerRef(c, req.Email)
	price := course.EffectivePriceAt(time.Now())

	discountTotal := decimal.Zero
	var appliedCodes []string
	rejections := []fiber.Map{}

	for _, code := range req.DiscountCodes {
		applied, err := h.discounts.Preview(code, course, appliedCodes)
		if err != nil {
			if r, ok := services.AsRejection(err); ok {
				rejections = append(rejections, fiber.Map{"code": code, "reason": r.Reason, "message": r.Message})
				continue
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to evaluate discount code"})
		}
		appliedCodes = append(appliedCodes, applied.Code)
		discountTotal = discountTotal.Add(applied.Amount)
	}

	referralValid := false
	if req.ReferralCode != "" {
		if _, err := h.referrals.Validate(req.ReferralCode, buyer); err != nil {
			if r, ok := services.AsRejection(err); ok {
				rejections = append(rejections, fiber.Map{"code": req.ReferralCode, "reason": r.Reason, "message": r.Message})
			} else {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to validate referral code"})
			}
		} else {
			referralValid = true
		}
	}

	amount := price.Sub(discountTotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return c.JSON(fiber.Map{
		"course_id":       course.ID,
		"effective_price": price.StringFixed(2),
		"discount":        discountTotal.StringFixed(2),
		"amount_due":      amount.StringFixed(2),
		"free_path":       amount.IsZero(),
		"referral_valid":  referralValid,
		"rejections":      rejections,
	})
}

func purchaseEmailBody(courseTitle, orderID, rewardCode string) string {
	body := fmt.Sprintf("<h1>Purchase Confirmed</h1><p>Your enrollment in <strong>%s</strong> is complete. Keep order <strong>%s</strong> for your records.</p>", courseTitle, orderID)
	if rewardCode != "" {
		body += fmt.Sprintf("<p>Thanks for checking out with a referral code! Use code <strong>%s</strong> for a %s credit on your next purchase.</p>", rewardCode, services.ReferralRewardAmount.StringFixed(2))
	}
	return body
}
