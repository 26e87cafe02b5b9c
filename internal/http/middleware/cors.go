package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultAllowedHeaders are the request headers the referral form is allowed to send.
const DefaultAllowedHeaders = "authorization, x-client-info, apikey, content-type"

// CORSConfig configures the allow-list CORS middleware.
type CORSConfig struct {
	// AllowedOrigins are matched by host; the first entry is the fallback
	// returned to callers whose origin is not listed.
	AllowedOrigins []string
	AllowedHeaders string
	AllowedMethods string
}

// CORS sets Access-Control-* headers on every response. A listed origin is
// echoed back; any other origin receives the fallback origin, never a
// wildcard. Preflight requests are answered with 204 without reaching next.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	headers := cfg.AllowedHeaders
	if headers == "" {
		headers = DefaultAllowedHeaders
	}
	methods := cfg.AllowedMethods
	if methods == "" {
		methods = "POST, OPTIONS"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", AllowedOrigin(origins, r.Header.Get("Origin")))
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Max-Age", "600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AllowedOrigin returns origin when its host matches an allow-list entry,
// otherwise the first allow-list entry. With an empty list it returns "*".
func AllowedOrigin(allowed []string, origin string) string {
	if len(allowed) == 0 {
		return "*"
	}
	origin = strings.TrimSpace(origin)
	if host := originHost(origin); host != "" {
		for _, candidate := range allowed {
			if strings.EqualFold(originHost(candidate), host) {
				return origin
			}
		}
	}
	return allowed[0]
}

// originHost extracts host[:port] from an origin, tolerating a missing scheme.
func originHost(origin string) string {
	if origin == "" || origin == "null" {
		return ""
	}
	if !strings.Contains(origin, "://") {
		origin = "https://" + origin
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}
