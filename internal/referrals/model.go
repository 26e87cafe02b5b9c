package referrals

import (
	"strings"
	"time"
)

// CategoryPartner tags every record accepted through the public referral form.
const CategoryPartner = "partner"

// Referral is a persisted referral submission. Records are append-only.
type Referral struct {
	ID               string    `json:"id"`
	ReferrerName     string    `json:"referrer_name"`
	ReferrerEmail    string    `json:"referrer_email"`
	ReferrerPhone    string    `json:"referrer_phone,omitempty"`
	ReferralName     string    `json:"referral_name"`
	ReferralEmail    string    `json:"referral_email"`
	ReferralPhone    string    `json:"referral_phone"`
	ReferralLinkedin string    `json:"referral_linkedin,omitempty"`
	Category         string    `json:"referral_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubmitRequest is the body accepted by the referral endpoint.
type SubmitRequest struct {
	CaptchaToken     string `json:"captchaToken"`
	ReferrerName     string `json:"referrerName"`
	ReferrerEmail    string `json:"referrerEmail"`
	ReferrerPhone    string `json:"referrerPhone,omitempty"`
	ReferralName     string `json:"referralName"`
	ReferralEmail    string `json:"referralEmail"`
	ReferralPhone    string `json:"referralPhone"`
	ReferralLinkedin string `json:"referralLinkedin,omitempty"`
}

// Normalize trims every field and lower-cases the email addresses.
func (r SubmitRequest) Normalize() SubmitRequest {
	return SubmitRequest{
		CaptchaToken:     strings.TrimSpace(r.CaptchaToken),
		ReferrerName:     strings.TrimSpace(r.ReferrerName),
		ReferrerEmail:    strings.ToLower(strings.TrimSpace(r.ReferrerEmail)),
		ReferrerPhone:    strings.TrimSpace(r.ReferrerPhone),
		ReferralName:     strings.TrimSpace(r.ReferralName),
		ReferralEmail:    strings.ToLower(strings.TrimSpace(r.ReferralEmail)),
		ReferralPhone:    strings.TrimSpace(r.ReferralPhone),
		ReferralLinkedin: strings.TrimSpace(r.ReferralLinkedin),
	}
}

// FieldValues exposes the validated fields keyed by their wire names.
func (r SubmitRequest) FieldValues() map[string]string {
	return map[string]string{
		FieldReferrerName:     r.ReferrerName,
		FieldReferrerEmail:    r.ReferrerEmail,
		FieldReferrerPhone:    r.ReferrerPhone,
		FieldReferralName:     r.ReferralName,
		FieldReferralEmail:    r.ReferralEmail,
		FieldReferralPhone:    r.ReferralPhone,
		FieldReferralLinkedin: r.ReferralLinkedin,
	}
}

// toReferral builds the unsaved record from a normalized request.
func (r SubmitRequest) toReferral() *Referral {
	n := r.Normalize()
	return &Referral{
		ReferrerName:     n.ReferrerName,
		ReferrerEmail:    n.ReferrerEmail,
		ReferrerPhone:    n.ReferrerPhone,
		ReferralName:     n.ReferralName,
		ReferralEmail:    n.ReferralEmail,
		ReferralPhone:    n.ReferralPhone,
		ReferralLinkedin: n.ReferralLinkedin,
		Category:         CategoryPartner,
	}
}

// SubmitResponse is returned on success. Only the identifier is echoed back.
type SubmitResponse struct {
	Success    bool   `json:"success"`
	ReferralID string `json:"referralId"`
}

// MsgCaptchaFailed is the error text of a captcha rejection. Clients match on
// it to tell that 400 apart from a malformed body.
const MsgCaptchaFailed = "CAPTCHA verification failed. Please try again."

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string      `json:"error"`
	Fields FieldErrors `json:"fields,omitempty"`
}
