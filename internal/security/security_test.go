package security

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echo(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return
		}
		_, _ = w.Write(data)
	})
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	handler := BodyLimit{Max: 10}.Middleware(echo(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader("hello")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	called := false
	handler := BodyLimit{Max: 5}.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader("content"))
	req.ContentLength = 100
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
	require.False(t, called)
}

func TestBodyLimitRejectsStreamedOverflow(t *testing.T) {
	handler := BodyLimit{Max: 5}.Middleware(echo(t))
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader("excessive"))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Contains(t, rec.Body.String(), `"maxBytes":5`)
}

func TestBodyLimitDisabled(t *testing.T) {
	handler := BodyLimit{}.Middleware(echo(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 4096))))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rec.Body.String(), 4096)
}

func TestHeadersMiddleware(t *testing.T) {
	handler := Headers{Enable: true, EnableHSTS: true}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "https://store.example/api/v1/products", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://store.example/", nil))
	require.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHeadersDisabled(t *testing.T) {
	handler := Headers{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, rec.Header().Get("X-Content-Type-Options"))
}
