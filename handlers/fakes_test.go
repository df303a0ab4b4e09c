package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/storefront/models"
	"github.com/coursekit/storefront/services"
)

// ── Fake CourseStore ──

type fakeCourseStore struct {
	courses map[uuid.UUID]*models.Course
}

func newFakeCourseStore(courses ...*models.Course) *fakeCourseStore {
	s := &fakeCourseStore{courses: make(map[uuid.UUID]*models.Course)}
	for _, c := range courses {
		s.courses[c.ID] = c
	}
	return s
}

func (s *fakeCourseStore) ListActive() ([]models.Course, error) {
	var out []models.Course
	for _, c := range s.courses {
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeCourseStore) FindBySlug(slug string) (*models.Course, error) {
	for _, c := range s.courses {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, services.ErrCourseNotFound
}

func (s *fakeCourseStore) FindByID(id uuid.UUID) (*models.Course, error) {
	if c, ok := s.courses[id]; ok {
		return c, nil
	}
	return nil, services.ErrCourseNotFound
}

// ── Fake OrderStore ──

type fakeOrderStore struct {
	orders    map[string]*models.Order
	nextID    int
	createErr error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*models.Order)}
}

func (s *fakeOrderStore) Create(order *models.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	if order.ID == "" {
		s.nextID++
		order.ID = fmt.Sprintf("ORD-TEST-%d", s.nextID)
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	stored := *order
	s.orders[order.ID] = &stored
	return nil
}

func (s *fakeOrderStore) FindByID(id string) (*models.Order, error) {
	if o, ok := s.orders[id]; ok {
		copy := *o
		return &copy, nil
	}
	return nil, services.ErrOrderNotFound
}

func (s *fakeOrderStore) FindByProviderRef(ref string) (*models.Order, error) {
	for _, o := range s.orders {
		if o.ProviderOrderRef != nil && *o.ProviderOrderRef == ref {
			copy := *o
			return &copy, nil
		}
		if o.ProviderPaymentID != nil && *o.ProviderPaymentID == ref {
			copy := *o
			return &copy, nil
		}
	}
	return nil, services.ErrOrderNotFound
}

func (s *fakeOrderStore) MarkCompleted(id string, providerPaymentID string) error {
	o, ok := s.orders[id]
	if !ok {
		return services.ErrOrderNotFound
	}
	if o.Status == models.OrderStatusCompleted {
		return nil
	}
	if !o.Status.CanTransitionTo(models.OrderStatusCompleted) {
		return fmt.Errorf("order %s cannot transition from %s", id, o.Status)
	}
	o.Status = models.OrderStatusCompleted
	if providerPaymentID != "" {
		o.ProviderPaymentID = &providerPaymentID
	}
	return nil
}

func (s *fakeOrderStore) MarkFailed(id string, reason string) error {
	o, ok := s.orders[id]
	if !ok {
		return services.ErrOrderNotFound
	}
	if !o.Status.CanTransitionTo(models.OrderStatusFailed) {
		return nil
	}
	o.Status = models.OrderStatusFailed
	o.FailureReason = &reason
	return nil
}

func (s *fakeOrderStore) AttachEnrollment(id string, enrollmentID uuid.UUID) error {
	o, ok := s.orders[id]
	if !ok {
		return services.ErrOrderNotFound
	}
	o.EnrollmentID = &enrollmentID
	o.EnrollmentCreated = true
	return nil
}

func (s *fakeOrderStore) SetProviderOrderRef(id string, ref string) error {
	o, ok := s.orders[id]
	if !ok {
		return services.ErrOrderNotFound
	}
	o.ProviderOrderRef = &ref
	return nil
}

func (s *fakeOrderStore) ListByBuyer(buyerRef string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range s.orders {
		if o.BuyerRef == buyerRef {
			out = append(out, *o)
		}
	}
	return out, nil
}

// ── Fake DiscountEvaluator ──
//
// Backed by the real evaluation rules; Redeem mutates the in-memory code
// the way the store-backed service's conditional UPDATE does.

type fakeDiscounts struct {
	codes     map[string]*models.DiscountCode
	now       time.Time
	redeemErr error
}

func newFakeDiscounts(now time.Time, codes ...*models.DiscountCode) *fakeDiscounts {
	s := &fakeDiscounts{codes: make(map[string]*models.DiscountCode), now: now}
	for _, dc := range codes {
		s.codes[strings.ToUpper(dc.Code)] = dc
	}
	return s
}

func (s *fakeDiscounts) lookup(code string) (*models.DiscountCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &services.Rejection{Reason: services.ReasonCodeEmpty, Message: "Discount code is empty"}
	}
	dc, ok := s.codes[strings.ToUpper(code)]
	if !ok {
		return nil, &services.Rejection{Reason: services.ReasonCodeNotFound, Message: "Discount code not found"}
	}
	return dc, nil
}

func (s *fakeDiscounts) Preview(code string, course *models.Course, prior []string) (*services.AppliedDiscount, error) {
	if len(prior) > 0 {
		return services.EvaluateDiscount(nil, course, prior, s.now)
	}
	dc, err := s.lookup(code)
	if err != nil {
		return nil, err
	}
	return services.EvaluateDiscount(dc, course, prior, s.now)
}

func (s *fakeDiscounts) Redeem(code string, course *models.Course, prior []string) (*services.AppliedDiscount, error) {
	if s.redeemErr != nil {
		return nil, s.redeemErr
	}
	if len(prior) > 0 {
		return services.EvaluateDiscount(nil, course, prior, s.now)
	}
	dc, err := s.lookup(code)
	if err != nil {
		return nil, err
	}
	applied, err := services.EvaluateDiscount(dc, course, prior, s.now)
	if err != nil {
		return nil, err
	}
	dc.UsageCount++
	if dc.HasBalanceLimit {
		dc.RemainingBalance = dc.RemainingBalance.Sub(applied.Consumed)
	}
	return applied, nil
}

// ── Fake ReferralLedger ──

type fakeReferrals struct {
	codes       map[string]*models.ReferralCode
	redemptions map[string]string // orderID -> code
	usageCounts map[string]int
	rewards     map[string]string
	ownCodes    map[string]string // buyerRef -> minted code

	incrementErr error
	rewardErr    error
	mintErr      error
}

func newFakeReferrals(codes ...*models.ReferralCode) *fakeReferrals {
	s := &fakeReferrals{
		codes:       make(map[string]*models.ReferralCode),
		redemptions: make(map[string]string),
		usageCounts: make(map[string]int),
		rewards:     make(map[string]string),
		ownCodes:    make(map[string]string),
	}
	for _, rc := range codes {
		s.codes[strings.ToUpper(rc.Code)] = rc
	}
	return s
}

func (s *fakeReferrals) Validate(code string, buyerRef string) (*models.ReferralCode, error) {
	rc, ok := s.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, &services.Rejection{Reason: services.ReasonReferralNotFound, Message: "Referral code not found"}
	}
	if rc.OwnerRef == buyerRef {
		return nil, &services.Rejection{Reason: services.ReasonSelfReferral, Message: "You cannot redeem your own referral code"}
	}
	return rc, nil
}

func (s *fakeReferrals) RecordRedemption(rc *models.ReferralCode, buyerRef string, orderID string) error {
	s.redemptions[orderID] = rc.Code
	return nil
}

func (s *fakeReferrals) IncrementUsage(orderID string) error {
	if s.incrementErr != nil {
		return s.incrementErr
	}
	if code, ok := s.redemptions[orderID]; ok {
		s.usageCounts[code]++
	}
	return nil
}

func (s *fakeReferrals) IssueRewardCode(orderID string) (string, error) {
	if s.rewardErr != nil {
		return "", s.rewardErr
	}
	if _, ok := s.redemptions[orderID]; !ok {
		return "", nil
	}
	if code, ok := s.rewards[orderID]; ok {
		return code, nil
	}
	code := "REWARD-" + orderID
	s.rewards[orderID] = code
	return code, nil
}

func (s *fakeReferrals) EnsureOwnCode(buyerRef, email, fullName string) (string, error) {
	if s.mintErr != nil {
		return "", s.mintErr
	}
	if code, ok := s.ownCodes[buyerRef]; ok {
		return code, nil
	}
	code := "SHARE-" + buyerRef
	s.ownCodes[buyerRef] = code
	s.codes[strings.ToUpper(code)] = &models.ReferralCode{Code: code, OwnerRef: buyerRef}
	return code, nil
}

// ── Fake Enroller ──

type fakeEnroller struct {
	enrollments map[string]uuid.UUID
	calls       int
	err         error
}

func newFakeEnroller() *fakeEnroller {
	return &fakeEnroller{enrollments: make(map[string]uuid.UUID)}
}

func enrollKey(userRef string, courseID uuid.UUID) string {
	return userRef + "|" + courseID.String()
}

func (s *fakeEnroller) EnsureEnrolled(userRef string, courseID uuid.UUID) (uuid.UUID, services.EnrollmentOutcome, error) {
	s.calls++
	if s.err != nil {
		return uuid.Nil, "", s.err
	}
	key := enrollKey(userRef, courseID)
	if id, ok := s.enrollments[key]; ok {
		return id, services.OutcomeAlreadyEnrolled, nil
	}
	id := uuid.New()
	s.enrollments[key] = id
	return id, services.OutcomeNew, nil
}

// ── Fake Mailer ──

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentEmail
}

func (m *fakeMailer) SendEmail(toName, toEmail, subject, htmlContent string) {
	m.sent = append(m.sent, sentEmail{to: toEmail, subject: subject, body: htmlContent})
}

var errStoreDown = errors.New("store unavailable")

// ── Request helpers ──

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func newRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}
