package payments

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursekit/storefront/models"
)

// MinimumCharge is the smallest amount the gateway accepts; anything below
// it (but still positive) is floored up to it.
var MinimumCharge = decimal.NewFromFloat(0.01)

var ErrGatewayNotConfigured = errors.New("payment gateway credentials are not configured")

// HostedCheckout is what the browser needs to reach the gateway's hosted
// payment page: a form action plus the signed fields to post there.
type HostedCheckout struct {
	FormAction string            `json:"form_action"`
	FormData   map[string]string `json:"form_data"`
}

// Gateway builds outbound hosted-checkout requests. It is constructed once
// at startup and injected wherever checkout runs.
type Gateway struct {
	apiKey      string
	checkoutURL string
	currency    string
	callbackURL string
	signer      *Signer
}

func NewGateway(apiKey, checkoutURL, currency, callbackURL string, signer *Signer) *Gateway {
	return &Gateway{
		apiKey:      apiKey,
		checkoutURL: checkoutURL,
		currency:    currency,
		callbackURL: callbackURL,
		signer:      signer,
	}
}

func (g *Gateway) Currency() string {
	return g.currency
}

// BuildHostedCheckout signs a pending order into the form payload the buyer
// posts to the gateway. The nonce is returned so the caller can store it as
// the provider order reference.
func (g *Gateway) BuildHostedCheckout(order *models.Order, course *models.Course, locale string) (*HostedCheckout, string, error) {
	if g.apiKey == "" || g.signer == nil || g.signer.secret == "" {
		return nil, "", ErrGatewayNotConfigured
	}

	amount := order.Amount
	if amount.LessThan(MinimumCharge) {
		amount = MinimumCharge
	}

	nonce := uuid.NewString()
	signature := g.signer.Sign(nonce, order.ID, amount, g.currency)

	checkout := &HostedCheckout{
		FormAction: g.checkoutURL,
		FormData: map[string]string{
			"apiKey":      g.apiKey,
			"orderId":     order.ID,
			"amount":      amount.StringFixed(2),
			"currency":    g.currency,
			"nonce":       nonce,
			"signature":   signature,
			"description": course.Title,
			"locale":      locale,
			"callbackUrl": g.callbackURL,
		},
	}
	return checkout, nonce, nil
}
