package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/coursekit/storefront/configs"
	"github.com/coursekit/storefront/models"
	"github.com/coursekit/storefront/payments"
)

type paymentFixture struct {
	app       *fiber.App
	orders    *fakeOrderStore
	courses   *fakeCourseStore
	enroller  *fakeEnroller
	referrals *fakeReferrals
	mailer    *fakeMailer
	signer    *payments.Signer
	course    *models.Course
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	cfg := &configs.AppConfig{
		FrontendBaseURL:    "http://front.test",
		GatewaySecret:      "secret",
		GatewayAPIKey:      "pk_test",
		SandboxOrderPrefix: "TEST-",
	}

	course := &models.Course{
		ID:    mustUUID(t),
		Slug:  "go-course",
		Title: "Go Course",
		Price: decimal.NewFromInt(100),
	}

	f := &paymentFixture{
		orders:    newFakeOrderStore(),
		courses:   newFakeCourseStore(course),
		enroller:  newFakeEnroller(),
		referrals: newFakeReferrals(),
		mailer:    &fakeMailer{},
		signer:    payments.NewSigner(cfg.GatewaySecret, cfg.SandboxOrderPrefix),
		course:    course,
	}

	h := NewPaymentHandler(cfg, f.orders, f.courses, f.enroller, f.referrals, f.mailer, f.signer)

	app := fiber.New()
	app.Get("/api/v1/payments/callback", h.HandleCallback)
	app.Post("/api/v1/payments/callback", h.HandleCallback)
	app.Get("/api/v1/payments/resolve", h.ResolveOrder)
	f.app = app
	return f
}

func (f *paymentFixture) pendingOrder(t *testing.T, id string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:         id,
		CourseID:   f.course.ID,
		BuyerEmail: "buyer@example.com",
		BuyerRef:   "user-1",
		Amount:     decimal.NewFromInt(48),
		Status:     models.OrderStatusPending,
	}
	if err := f.orders.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (f *paymentFixture) callbackGET(t *testing.T, params url.Values) *http.Response {
	t.Helper()
	req := newRequest(t, "GET", "/api/v1/payments/callback?"+params.Encode(), "")
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func (f *paymentFixture) signedSuccess(orderID string) url.Values {
	nonce := "123456"
	amount := "48.00"
	currency := "USD"
	sig := f.signer.Sign(nonce, orderID, decimal.RequireFromString(amount), currency)

	params := url.Values{}
	params.Set("status", "success")
	params.Set("orderId", orderID)
	params.Set("paymentId", "PAY-777")
	params.Set("nonce", nonce)
	params.Set("totalAmount", amount)
	params.Set("currency", currency)
	params.Set("signature", sig)
	return params
}

func wantRedirect(t *testing.T, resp *http.Response, fragment string) string {
	t.Helper()
	if resp.StatusCode != fiber.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	location := resp.Header.Get("Location")
	if !strings.Contains(location, fragment) {
		t.Fatalf("redirect %q does not contain %q", location, fragment)
	}
	return location
}

func TestCallbackSuccessCompletesOrderAndEnrolls(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-OK-1")

	resp := f.callbackGET(t, f.signedSuccess(order.ID))
	location := wantRedirect(t, resp, "/checkout/success")
	if !strings.Contains(location, "order_id=ORD-OK-1") || !strings.Contains(location, "payment_id=PAY-777") {
		t.Fatalf("success redirect missing identifiers: %q", location)
	}

	stored, _ := f.orders.FindByID(order.ID)
	if stored.Status != models.OrderStatusCompleted {
		t.Fatalf("order status = %s, want completed", stored.Status)
	}
	if stored.ProviderPaymentID == nil || *stored.ProviderPaymentID != "PAY-777" {
		t.Fatal("provider payment id not recorded")
	}
	if !stored.EnrollmentCreated || stored.EnrollmentID == nil {
		t.Fatal("enrollment not attached to the order")
	}
	if len(f.enroller.enrollments) != 1 {
		t.Fatalf("enrollments = %d, want 1", len(f.enroller.enrollments))
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(f.mailer.sent))
	}
}

func TestCallbackReplayConvergesOnOneEnrollment(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-REPLAY-1")
	params := f.signedSuccess(order.ID)

	first := f.callbackGET(t, params)
	wantRedirect(t, first, "/checkout/success")
	second := f.callbackGET(t, params)
	wantRedirect(t, second, "/checkout/success")

	stored, _ := f.orders.FindByID(order.ID)
	if stored.Status != models.OrderStatusCompleted {
		t.Fatalf("order status = %s, want completed", stored.Status)
	}
	if len(f.enroller.enrollments) != 1 {
		t.Fatalf("enrollments = %d, want exactly 1 after replay", len(f.enroller.enrollments))
	}
	// Enrollment-ensure runs on every delivery in case the first attempt
	// died before enrolling.
	if f.enroller.calls != 2 {
		t.Fatalf("EnsureEnrolled calls = %d, want 2", f.enroller.calls)
	}
}

func TestCallbackNonSuccessFailsOrderWithoutEnrolling(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-FAIL-1")

	params := url.Values{}
	params.Set("status", "cancelled")
	params.Set("orderId", order.ID)

	resp := f.callbackGET(t, params)
	location := wantRedirect(t, resp, "/checkout/failed")
	if !strings.Contains(location, "reason=payment_failed") || !strings.Contains(location, "status=cancelled") {
		t.Fatalf("failure redirect missing detail: %q", location)
	}

	stored, _ := f.orders.FindByID(order.ID)
	if stored.Status != models.OrderStatusFailed {
		t.Fatalf("order status = %s, want failed", stored.Status)
	}
	if f.enroller.calls != 0 {
		t.Fatal("non-success callback must never invoke enrollment")
	}
}

func TestCallbackFailureCannotRevertCompletedOrder(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-LATE-1")
	wantRedirect(t, f.callbackGET(t, f.signedSuccess(order.ID)), "/checkout/success")

	params := url.Values{}
	params.Set("status", "failed")
	params.Set("orderId", order.ID)
	wantRedirect(t, f.callbackGET(t, params), "/checkout/failed")

	stored, _ := f.orders.FindByID(order.ID)
	if stored.Status != models.OrderStatusCompleted {
		t.Fatalf("order status = %s, a late failure must not revert completion", stored.Status)
	}
}

func TestCallbackInvalidSignature(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-SIG-1")

	params := f.signedSuccess(order.ID)
	params.Set("signature", "bm90LXRoZS1zaWduYXR1cmU=")

	resp := f.callbackGET(t, params)
	wantRedirect(t, resp, "reason=invalid_signature")

	stored, _ := f.orders.FindByID(order.ID)
	if stored.Status != models.OrderStatusPending {
		t.Fatalf("order status = %s, want untouched pending", stored.Status)
	}
	if f.enroller.calls != 0 {
		t.Fatal("invalid signature must stop all processing")
	}
}

func TestCallbackSandboxOrderSkipsVerification(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "TEST-SANDBOX-1")

	params := f.signedSuccess(order.ID)
	params.Set("signature", "garbage")

	resp := f.callbackGET(t, params)
	wantRedirect(t, resp, "/checkout/success")
}

func TestCallbackMissingOrderID(t *testing.T) {
	f := newPaymentFixture(t)

	params := url.Values{}
	params.Set("status", "success")

	resp := f.callbackGET(t, params)
	wantRedirect(t, resp, "reason=missing_order_id")
}

func TestCallbackUnknownOrder(t *testing.T) {
	f := newPaymentFixture(t)

	params := url.Values{}
	params.Set("status", "success")
	params.Set("orderId", "ORD-NOPE")

	resp := f.callbackGET(t, params)
	wantRedirect(t, resp, "reason=order_not_found")
}

func TestCallbackBestEffortFailuresKeepSuccessRedirect(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-SIDE-1")
	f.referrals.incrementErr = errStoreDown
	f.referrals.rewardErr = errStoreDown

	resp := f.callbackGET(t, f.signedSuccess(order.ID))
	wantRedirect(t, resp, "/checkout/success")

	stored, _ := f.orders.FindByID(order.ID)
	if stored.Status != models.OrderStatusCompleted {
		t.Fatalf("order status = %s, want completed despite side-effect failures", stored.Status)
	}
	if len(f.mailer.sent) != 1 {
		t.Fatal("one failed side effect must not stop the others")
	}
}

func TestCallbackDeliversRewardCodeAndMintsOwnCode(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-REF-1")
	f.referrals.codes["FRIEND-1"] = &models.ReferralCode{Code: "FRIEND-1", OwnerRef: "someone-else"}
	f.referrals.redemptions[order.ID] = "FRIEND-1"

	resp := f.callbackGET(t, f.signedSuccess(order.ID))
	wantRedirect(t, resp, "/checkout/success")

	if f.referrals.usageCounts["FRIEND-1"] != 1 {
		t.Fatalf("referral usage = %d, want 1", f.referrals.usageCounts["FRIEND-1"])
	}
	reward := f.referrals.rewards[order.ID]
	if reward == "" {
		t.Fatal("no reward code issued for the redeemed referral")
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(f.mailer.sent))
	}
	if !strings.Contains(f.mailer.sent[0].body, reward) {
		t.Fatalf("confirmation email does not carry reward code %q", reward)
	}
	// The buyer also gets their own code to share.
	if f.referrals.ownCodes[order.BuyerRef] == "" {
		t.Fatal("no referral code minted for the buyer")
	}
}

func TestCallbackEnrollmentFailureStillRedirectsSuccess(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-ENR-1")
	f.enroller.err = errStoreDown

	resp := f.callbackGET(t, f.signedSuccess(order.ID))
	wantRedirect(t, resp, "/checkout/success")

	stored, _ := f.orders.FindByID(order.ID)
	if stored.Status != models.OrderStatusCompleted {
		t.Fatalf("order status = %s, payment succeeded so the order stays completed", stored.Status)
	}
	if stored.EnrollmentCreated {
		t.Fatal("enrollment must not be attached when it failed")
	}
}

func TestCallbackPOSTFormEncoded(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-FORM-1")

	params := f.signedSuccess(order.ID)
	req := newRequest(t, "POST", "/api/v1/payments/callback", params.Encode())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	wantRedirect(t, resp, "/checkout/success")
}

func TestResolveOrderByProviderRef(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.pendingOrder(t, "ORD-RES-1")
	if err := f.orders.SetProviderOrderRef(order.ID, "nonce-xyz"); err != nil {
		t.Fatalf("set provider ref: %v", err)
	}

	resp, err := f.app.Test(newRequest(t, "GET", "/api/v1/payments/resolve?ref=nonce-xyz", ""), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["order_id"] != order.ID {
		t.Fatalf("order_id = %v, want %s", body["order_id"], order.ID)
	}
}

func TestResolveOrderUnknownRef(t *testing.T) {
	f := newPaymentFixture(t)

	resp, err := f.app.Test(newRequest(t, "GET", "/api/v1/payments/resolve?ref=missing", ""), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
