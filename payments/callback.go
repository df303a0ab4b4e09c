package payments

import (
	"encoding/json"
	"net/url"
	"strings"
)

// CallbackEncoding tags which wire encoding a callback arrived in.
type CallbackEncoding string

const (
	EncodingQuery CallbackEncoding = "query"
	EncodingForm  CallbackEncoding = "form"
	EncodingJSON  CallbackEncoding = "json"
)

// CallbackPayload is the one internal shape every gateway callback is
// normalized into before any business logic looks at it. The gateway picks
// the encoding, not us.
type CallbackPayload struct {
	Status    string
	OrderID   string
	PaymentID string
	Signature string
	Nonce     string
	Amount    string
	Currency  string

	Encoding CallbackEncoding
}

type callbackJSON struct {
	Status       string `json:"status"`
	State        string `json:"state"`
	OrderID      string `json:"orderId"`
	PlatformID   string `json:"platformOrderId"`
	PaymentID    string `json:"paymentId"`
	TxID         string `json:"transactionId"`
	Signature    string `json:"signature"`
	Nonce        string `json:"nonce"`
	RandomString string `json:"random"`
	Amount       string `json:"totalAmount"`
	AmountAlt    string `json:"amount"`
	Currency     string `json:"currency"`
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fromValues(v url.Values, enc CallbackEncoding) *CallbackPayload {
	return &CallbackPayload{
		Status:    first(v.Get("status"), v.Get("state")),
		OrderID:   first(v.Get("orderId"), v.Get("platformOrderId"), v.Get("order_id")),
		PaymentID: first(v.Get("paymentId"), v.Get("transactionId"), v.Get("payment_id")),
		Signature: v.Get("signature"),
		Nonce:     first(v.Get("nonce"), v.Get("random")),
		Amount:    first(v.Get("totalAmount"), v.Get("amount")),
		Currency:  v.Get("currency"),
		Encoding:  enc,
	}
}

// ParseCallback normalizes a callback into a CallbackPayload. GET callbacks
// carry everything in the query string; POST bodies may be JSON,
// form-encoded, or a raw query string with no content type at all.
func ParseCallback(method, contentType string, query url.Values, body []byte) *CallbackPayload {
	if method == "GET" || len(body) == 0 {
		return fromValues(query, EncodingQuery)
	}

	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "application/json") || looksLikeJSON(body) {
		var p callbackJSON
		if err := json.Unmarshal(body, &p); err == nil {
			return &CallbackPayload{
				Status:    first(p.Status, p.State),
				OrderID:   first(p.OrderID, p.PlatformID),
				PaymentID: first(p.PaymentID, p.TxID),
				Signature: p.Signature,
				Nonce:     first(p.Nonce, p.RandomString),
				Amount:    first(p.Amount, p.AmountAlt),
				Currency:  p.Currency,
				Encoding:  EncodingJSON,
			}
		}
	}

	// Form-encoded and raw query-string bodies parse the same way.
	if values, err := url.ParseQuery(string(body)); err == nil {
		return fromValues(values, EncodingForm)
	}

	return fromValues(query, EncodingQuery)
}

func looksLikeJSON(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{")
}
