package handlers

import (
	"log"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/storefront/configs"
	"github.com/coursekit/storefront/models"
	"github.com/coursekit/storefront/payments"
)

// Failure reasons surfaced on the failure redirect. Categories (c) of the
// error taxonomy: generic, never internal detail.
const (
	failureInvalidSignature = "invalid_signature"
	failureMissingOrderID   = "missing_order_id"
	failureOrderNotFound    = "order_not_found"
	failureOrderNotPayable  = "order_not_payable"
)

type PaymentHandler struct {
	cfg       *configs.AppConfig
	orders    OrderStore
	courses   CourseStore
	enroll    Enroller
	referrals ReferralLedger
	mailer    Mailer
	signer    *payments.Signer
}

func NewPaymentHandler(cfg *configs.AppConfig, orders OrderStore, courses CourseStore, enroll Enroller, referrals ReferralLedger, mailer Mailer, signer *payments.Signer) *PaymentHandler {
	return &PaymentHandler{
		cfg:       cfg,
		orders:    orders,
		courses:   courses,
		enroll:    enroll,
		referrals: referrals,
		mailer:    mailer,
		signer:    signer,
	}
}

func successURL(frontendBase string, order *models.Order, course *models.Course) string {
	q := url.Values{}
	q.Set("order_id", order.ID)
	if order.ProviderPaymentID != nil {
		q.Set("payment_id", *order.ProviderPaymentID)
	}
	if course != nil {
		q.Set("course_id", course.ID.String())
		q.Set("course", course.Title)
	}
	return frontendBase + "/checkout/success?" + q.Encode()
}

func failureURL(frontendBase, reason, orderID, providerStatus string) string {
	q := url.Values{}
	q.Set("reason", reason)
	if orderID != "" {
		q.Set("order_id", orderID)
	}
	if providerStatus != "" {
		q.Set("status", providerStatus)
	}
	return frontendBase + "/checkout/failed?" + q.Encode()
}

// HandleCallback is the gateway's return URL, hit by the buyer's browser or
// by the gateway's server. The response is always a 303 redirect to a
// presentation page, never JSON: the other end is a redirected human.
//
// The gateway delivers at-least-once; every state change below is a
// conditional transition so a replayed success callback converges on the
// same completed order and single enrollment.
func (h *PaymentHandler) HandleCallback(c *fiber.Ctx) error {
	payload := payments.ParseCallback(c.Method(), c.Get(fiber.HeaderContentType), queryValues(c), c.Body())

	sandbox := h.signer.IsSandboxOrder(payload.OrderID)
	if payload.Signature != "" && !sandbox {
		if !h.signer.Verify(payload.Nonce, payload.OrderID, payload.Amount, payload.Currency, payload.Signature) {
			log.Printf("🔥 Invalid callback signature for order %q", payload.OrderID)
			return h.redirectFailure(c, failureInvalidSignature, "", "")
		}
	}

	if payload.OrderID == "" {
		return h.redirectFailure(c, failureMissingOrderID, "", "")
	}

	order, err := h.orders.FindByID(payload.OrderID)
	if err != nil {
		log.Printf("🔥 Callback for unknown order %q", payload.OrderID)
		return h.redirectFailure(c, failureOrderNotFound, payload.OrderID, "")
	}

	course, err := h.courses.FindByID(order.CourseID)
	if err != nil {
		course = nil
	}

	if !strings.EqualFold(payload.Status, "success") {
		// Terminal for this callback: no enrollment ever happens off a
		// non-success status. MarkFailed only moves pending orders.
		if err := h.orders.MarkFailed(order.ID, payload.Status); err != nil {
			log.Printf("🔥 Failed to mark order %s failed: %v", order.ID, err)
		}
		return h.redirectFailure(c, "payment_failed", order.ID, payload.Status)
	}

	if order.Status == models.OrderStatusFailed {
		// A success callback cannot resurrect an already-failed order.
		return h.redirectFailure(c, failureOrderNotPayable, order.ID, "")
	}

	if err := h.orders.MarkCompleted(order.ID, payload.PaymentID); err != nil {
		log.Printf("🔥 CRITICAL: Failed to mark order %s completed: %v", order.ID, err)
		return h.redirectFailure(c, failureOrderNotPayable, order.ID, "")
	}
	if payload.PaymentID != "" {
		order.ProviderPaymentID = &payload.PaymentID
	}

	// Payment has succeeded, so from here on nothing may turn the redirect
	// into a failure. Enrollment is retried on every (re)delivery in case a
	// prior attempt died between completion and enrollment.
	enrollmentID, outcome, err := h.enroll.EnsureEnrolled(order.BuyerRef, order.CourseID)
	if err != nil {
		log.Printf("🔥 CRITICAL: Enrollment failed for completed order %s: %v", order.ID, err)
	} else {
		log.Printf("✅ Enrollment ensured for order %s (%s)", order.ID, outcome)
		if err := h.orders.AttachEnrollment(order.ID, enrollmentID); err != nil {
			log.Printf("🔥 Failed to attach enrollment to order %s: %v", order.ID, err)
		}
	}

	runPostCommitEvents(order, course, "", h.referrals, h.mailer)

	return c.Redirect(successURL(h.cfg.FrontendBaseURL, order, course), fiber.StatusSeeOther)
}

func (h *PaymentHandler) redirectFailure(c *fiber.Ctx, reason, orderID, providerStatus string) error {
	return c.Redirect(failureURL(h.cfg.FrontendBaseURL, reason, orderID, providerStatus), fiber.StatusSeeOther)
}

// ResolveOrder maps the gateway's own order token back to the platform
// order, for clients that only received the gateway reference.
func (h *PaymentHandler) ResolveOrder(c *fiber.Ctx) error {
	ref := c.Query("ref")
	if ref == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing order reference"})
	}

	order, err := h.orders.FindByProviderRef(ref)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}

	return c.JSON(fiber.Map{
		"order_id":  order.ID,
		"course_id": order.CourseID,
		"status":    order.Status,
	})
}

func queryValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}
