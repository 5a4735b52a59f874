package security_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitorrgg/app-freteclick/internal/security"
)

func serve(h security.Headers, req *http.Request) http.Header {
	rr := httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr.Result().Header
}

func TestHeadersMiddleware(t *testing.T) {
	t.Parallel()

	headers := serve(security.Headers{}, httptest.NewRequest(http.MethodPost, "/ecom/webhook", nil))
	require.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", headers.Get("Cache-Control"))
	require.Empty(t, headers.Get("Strict-Transport-Security"))
}

func TestHeadersMiddlewareHSTS(t *testing.T) {
	t.Parallel()

	h := security.Headers{HSTSMaxAge: 24 * time.Hour}
	req := httptest.NewRequest(http.MethodGet, "https://app.example/health/live", nil)
	req.TLS = &tls.ConnectionState{}
	require.Equal(t, "max-age=86400", serve(h, req).Get("Strict-Transport-Security"))

	plain := httptest.NewRequest(http.MethodGet, "http://app.example/health/live", nil)
	require.Empty(t, serve(h, plain).Get("Strict-Transport-Security"))
}
