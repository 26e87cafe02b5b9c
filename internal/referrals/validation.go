package referrals

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Wire names of the validated fields. Client and server report errors under these keys.
const (
	FieldReferrerName     = "referrerName"
	FieldReferrerEmail    = "referrerEmail"
	FieldReferrerPhone    = "referrerPhone"
	FieldReferralName     = "referralName"
	FieldReferralEmail    = "referralEmail"
	FieldReferralPhone    = "referralPhone"
	FieldReferralLinkedin = "referralLinkedin"
)

// ProfileHost must appear in a referral profile URL.
const ProfileHost = "linkedin.com"

var (
	// International dialing shape: "+" then 2-15 digits, the first 1-9.
	phonePattern  = regexp.MustCompile(`^\+[1-9][0-9]{1,14}$`)
	emailPattern  = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+(\.[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+)*@([A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?\.)+[A-Za-z]{2,}$`)
	schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)
)

// Rule describes the constraints on one field. Checks run in order and the
// first failure wins: required, min length, max length, pattern, contains.
type Rule struct {
	Field           string
	Required        bool
	RequiredMessage string
	MinLen          int
	MinMessage      string
	MaxLen          int
	MaxMessage      string
	Pattern         *regexp.Regexp
	Contains        string
	Message         string
}

// Ruleset is an ordered list of field rules.
type Ruleset []Rule

func nameRule(field string) Rule {
	return Rule{
		Field:           field,
		Required:        true,
		RequiredMessage: "Name must be at least 2 characters",
		MinLen:          2,
		MinMessage:      "Name must be at least 2 characters",
		MaxLen:          100,
		MaxMessage:      "Name must be less than 100 characters",
	}
}

func emailRule(field string) Rule {
	return Rule{
		Field:           field,
		Required:        true,
		RequiredMessage: "Please enter a valid email address",
		MaxLen:          255,
		MaxMessage:      "Email must be less than 255 characters",
		Pattern:         emailPattern,
		Message:         "Please enter a valid email address",
	}
}

func phoneRule(field string, required bool) Rule {
	return Rule{
		Field:           field,
		Required:        required,
		RequiredMessage: "Phone number is required",
		Pattern:         phonePattern,
		Message:         "Please enter a valid phone number with country code (e.g. +14155550123)",
	}
}

// DefaultRules is the single definition of the referral form constraints.
var DefaultRules = Ruleset{
	nameRule(FieldReferrerName),
	emailRule(FieldReferrerEmail),
	phoneRule(FieldReferrerPhone, false),
	nameRule(FieldReferralName),
	emailRule(FieldReferralEmail),
	phoneRule(FieldReferralPhone, true),
	{
		Field:    FieldReferralLinkedin,
		Pattern:  schemePattern,
		Contains: ProfileHost,
		Message:  "Please enter a valid LinkedIn URL",
	},
}

// Validate evaluates every rule against values and returns nil when all pass.
// Values are trimmed before checking.
func (rs Ruleset) Validate(values map[string]string) FieldErrors {
	var errs FieldErrors
	for _, rule := range rs {
		if msg, ok := rule.check(values[rule.Field]); !ok {
			if errs == nil {
				errs = FieldErrors{}
			}
			errs[rule.Field] = msg
		}
	}
	return errs
}

// ValidateField checks a single field, returning "" when it passes or has no rule.
func (rs Ruleset) ValidateField(field, value string) string {
	for _, rule := range rs {
		if rule.Field == field {
			msg, _ := rule.check(value)
			return msg
		}
	}
	return ""
}

func (r Rule) check(raw string) (string, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		if r.Required {
			return r.RequiredMessage, false
		}
		return "", true
	}
	n := utf8.RuneCountInString(value)
	if r.MinLen > 0 && n < r.MinLen {
		return r.MinMessage, false
	}
	if r.MaxLen > 0 && n > r.MaxLen {
		return r.MaxMessage, false
	}
	if r.Pattern != nil && !r.Pattern.MatchString(value) {
		return r.Message, false
	}
	if r.Contains != "" && !strings.Contains(strings.ToLower(value), r.Contains) {
		return r.Message, false
	}
	return "", true
}

// Validate applies DefaultRules to a submission. Both the form controller and
// the gateway call this so their field errors never drift.
func Validate(req SubmitRequest) FieldErrors {
	return DefaultRules.Validate(req.FieldValues())
}
