package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHeadersMiddlewareSetsSecurityHeaders(t *testing.T) {
	handler := Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
}

func TestHeadersMiddlewareHSTSBehindProxy(t *testing.T) {
	handler := Headers{Enable: true, EnableHSTS: true, HSTSMaxAge: 60}.Middleware(okHandler())

	plain := httptest.NewRecorder()
	handler.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	require.Empty(t, plain.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	proxied := httptest.NewRecorder()
	handler.ServeHTTP(proxied, req)
	require.Equal(t, "max-age=60", proxied.Header().Get("Strict-Transport-Security"))
}

func TestHeadersMiddlewareDisabled(t *testing.T) {
	handler := Headers{Enable: false, EnableHSTS: true}.Middleware(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	require.Empty(t, rr.Header().Get("X-Content-Type-Options"))
}
