package middleware

import (
	"net/http"
	"strings"
)

// UnknownClientKey buckets callers that carry no forwarded address.
const UnknownClientKey = "unknown"

// ClientKey derives the rate-limit key for a request: the first entry of
// X-Forwarded-For, then CF-Connecting-IP, then UnknownClientKey.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	return UnknownClientKey
}
