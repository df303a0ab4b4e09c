package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/coursekit/storefront/models"
	"github.com/coursekit/storefront/payments"
	"github.com/coursekit/storefront/services"
)

var validate = validator.New()

// The handlers depend on small interfaces rather than the concrete
// services, so tests can substitute in-memory fakes for the store-backed
// implementations built in cmd/api.

type CourseStore interface {
	ListActive() ([]models.Course, error)
	FindBySlug(slug string) (*models.Course, error)
	FindByID(id uuid.UUID) (*models.Course, error)
}

type OrderStore interface {
	Create(order *models.Order) error
	FindByID(id string) (*models.Order, error)
	FindByProviderRef(ref string) (*models.Order, error)
	MarkCompleted(id string, providerPaymentID string) error
	MarkFailed(id string, reason string) error
	AttachEnrollment(id string, enrollmentID uuid.UUID) error
	SetProviderOrderRef(id string, ref string) error
	ListByBuyer(buyerRef string) ([]models.Order, error)
}

type DiscountEvaluator interface {
	Preview(code string, course *models.Course, prior []string) (*services.AppliedDiscount, error)
	Redeem(code string, course *models.Course, prior []string) (*services.AppliedDiscount, error)
}

type ReferralLedger interface {
	Validate(code string, buyerRef string) (*models.ReferralCode, error)
	RecordRedemption(rc *models.ReferralCode, buyerRef string, orderID string) error
	IncrementUsage(orderID string) error
	IssueRewardCode(orderID string) (string, error)
	EnsureOwnCode(buyerRef, email, fullName string) (string, error)
}

type Enroller interface {
	EnsureEnrolled(userRef string, courseID uuid.UUID) (uuid.UUID, services.EnrollmentOutcome, error)
}

type Mailer interface {
	SendEmail(toName, toEmail, subject, htmlContent string)
}

type CheckoutGateway interface {
	Currency() string
	BuildHostedCheckout(order *models.Order, course *models.Course, locale string) (*payments.HostedCheckout, string, error)
}
