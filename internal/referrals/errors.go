package referrals

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation is returned when one or more fields violate the ruleset.
	ErrValidation = errors.New("referrals: validation failed")

	// ErrCaptcha is returned when the verification token is missing or rejected.
	ErrCaptcha = errors.New("referrals: captcha verification failed")

	// ErrRateLimited is returned when the caller exceeded its request budget.
	ErrRateLimited = errors.New("referrals: rate limit exceeded")

	// ErrPersistence is returned when the referral could not be stored.
	ErrPersistence = errors.New("referrals: persistence failed")
)

// FieldErrors maps a field's wire name to a user-facing message.
type FieldErrors map[string]string

// ValidationError carries the per-field messages for a rejected submission.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "referrals: invalid fields: " + strings.Join(keys, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
