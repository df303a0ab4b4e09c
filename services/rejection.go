package services

// Rejection reason codes, one per business rule, so the UI can show a
// precise message for each.
const (
	ReasonCodeEmpty          = "code_empty"
	ReasonDiscountStacking   = "discount_already_applied"
	ReasonCodeNotFound       = "code_not_found"
	ReasonCodeExpired        = "code_expired"
	ReasonCourseNotEligible  = "course_not_eligible"
	ReasonUsageCapReached    = "usage_cap_reached"
	ReasonCodeNotUsable      = "code_not_usable"
	ReasonSelfReferral       = "self_referral"
	ReasonReferralApplied    = "referral_already_applied"
	ReasonReferralNotFound   = "referral_not_found"
)

// Rejection is a business-rule refusal. It changes the HTTP outcome the
// buyer sees, unlike an internal error, and carries a machine-readable
// reason alongside the human message.
type Rejection struct {
	Reason  string
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(reason, message string) *Rejection {
	return &Rejection{Reason: reason, Message: message}
}

// AsRejection unwraps err into a Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	r, ok := err.(*Rejection)
	return r, ok
}
