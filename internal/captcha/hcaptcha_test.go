package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

func newProvider(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestVerifier(t *testing.T, url string, timeout time.Duration) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{Secret: "server-secret", VerifyURL: url, Timeout: timeout}, logging.Default())
	require.NoError(t, err)
	return v
}

func TestVerify_Success(t *testing.T) {
	srv, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "tok-123", r.PostForm.Get("response"))
		assert.Equal(t, "server-secret", r.PostForm.Get("secret"))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	v := newTestVerifier(t, srv.URL, time.Second)
	assert.True(t, v.Verify(context.Background(), "tok-123"))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "token must be checked exactly once")
}

func TestVerify_ProviderRejects(t *testing.T) {
	srv, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	})
	v := newTestVerifier(t, srv.URL, time.Second)
	assert.False(t, v.Verify(context.Background(), "bad"))
}

func TestVerify_FailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`not json`)) }},
		{"success not boolean true", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newProvider(t, tt.handler)
			v := newTestVerifier(t, srv.URL, time.Second)
			assert.False(t, v.Verify(context.Background(), "tok"))
		})
	}
}

func TestVerify_TimeoutFailsClosed(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	defer close(release)

	v := newTestVerifier(t, srv.URL, 50*time.Millisecond)
	start := time.Now()
	assert.False(t, v.Verify(context.Background(), "tok"))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestVerify_UnreachableFailsClosed(t *testing.T) {
	v := newTestVerifier(t, "http://127.0.0.1:1/siteverify", 200*time.Millisecond)
	assert.False(t, v.Verify(context.Background(), "tok"))
}

func TestVerify_EmptyTokenSkipsProvider(t *testing.T) {
	srv, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	v := newTestVerifier(t, srv.URL, time.Second)
	assert.False(t, v.Verify(context.Background(), "  "))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier(Config{}, nil)
	assert.Error(t, err)
}
