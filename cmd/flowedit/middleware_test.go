package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/flowedit/config"
	"github.com/BaSui01/flowedit/internal/ctxkeys"
	"github.com/BaSui01/flowedit/internal/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders()(okHandler()), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, contentSecurityPolicy, w.Header().Get("Content-Security-Policy"))
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.RequestID(r.Context())
	})
	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := serve(handler, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), seen)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r.Header.Set("X-Request-ID", "client-id")
	w = serve(handler, r)
	assert.Equal(t, "client-id", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-id", seen)
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	w := serve(Recovery(zap.NewNop())(panicky), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestCORS(t *testing.T) {
	t.Run("listed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := serve(CORS([]string{"https://app.example.com"})(okHandler()), r)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := serve(CORS([]string{"https://app.example.com"})(okHandler()), r)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wildcard echoes origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://any.example.com")
		w := serve(CORS([]string{"*"})(okHandler()), r)
		assert.Equal(t, "https://any.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight without config is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := serve(CORS(nil)(okHandler()), r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := serve(CORS([]string{"https://app.example.com"})(okHandler()), r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuth(t *testing.T) {
	const secret = "test-secret"
	var user string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ = ctxkeys.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Auth(config.AuthConfig{JWTSecret: secret, APIKeys: []string{"key-1"}}, zap.NewNop())(inner)

	valid := signToken(t, secret, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()})
	expired := signToken(t, secret, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()})
	forged := signToken(t, "other", jwt.MapClaims{"sub": "mallory"})

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
		user   string
	}{
		{name: "health is public", path: "/healthz", want: http.StatusOK},
		{name: "static is public", path: "/app.js", want: http.StatusOK},
		{name: "missing credentials", path: "/api/v1/workflows", want: http.StatusUnauthorized},
		{name: "api key", path: "/api/v1/workflows", header: map[string]string{"X-API-Key": "key-1"}, want: http.StatusOK},
		{name: "wrong api key", path: "/api/v1/workflows", header: map[string]string{"X-API-Key": "nope"}, want: http.StatusUnauthorized},
		{name: "bearer token", path: "/api/v1/workflows", header: map[string]string{"Authorization": "Bearer " + valid}, want: http.StatusOK, user: "alice"},
		{name: "expired token", path: "/api/v1/workflows", header: map[string]string{"Authorization": "Bearer " + expired}, want: http.StatusUnauthorized},
		{name: "forged token", path: "/api/v1/workflows", header: map[string]string{"Authorization": "Bearer " + forged}, want: http.StatusUnauthorized},
		{name: "ws query token", path: "/ws?token=" + valid, want: http.StatusOK, user: "alice"},
		{name: "ws query api key", path: "/ws?api_key=key-1", want: http.StatusOK},
		{name: "query key only on ws", path: "/api/v1/workflows?api_key=key-1", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user = ""
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			w := serve(handler, r)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.user, user)
		})
	}
}

func TestAuth_UserIDClaimWins(t *testing.T) {
	const secret = "s"
	var user string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ = ctxkeys.UserID(r.Context())
	})
	handler := Auth(config.AuthConfig{JWTSecret: secret}, zap.NewNop())(inner)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, secret, jwt.MapClaims{"sub": "a", "user_id": "u-42"}))
	serve(handler, r)
	assert.Equal(t, "u-42", user)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler())

	request := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		return serve(handler, r).Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:1236"))
	// 其他 IP 不受影响
	assert.Equal(t, http.StatusOK, request("10.0.0.2:1234"))
}

func TestRateLimiter_KeysByUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimiter(ctx, 1, 1, zap.NewNop())(okHandler())

	request := func(user string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(ctxkeys.WithUserID(r.Context(), user))
		return serve(handler, r).Code
	}

	assert.Equal(t, http.StatusOK, request("alice"))
	assert.Equal(t, http.StatusTooManyRequests, request("alice"))
	assert.Equal(t, http.StatusOK, request("bob"))
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/":                                 "/",
		"/ws":                               "/ws",
		"/healthz":                          "/healthz",
		"/api/v1/workflows":                 "/api/v1/workflows",
		"/api/v1/workflows/my-flow":         "/api/v1/workflows/:id",
		"/api/v1/workflows/123":             "/api/v1/workflows/:id",
		"/api/v1/things/deadbeef01/parts/7": "/api/v1/things/:id/parts/:id",
		"/app.js":                           "/static",
		"/style.css":                        "/static",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePath(in), in)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry("test", reg, zap.NewNop())

	handler := MetricsMiddleware(collector)(okHandler())
	serve(handler, httptest.NewRequest(http.MethodGet, "/api/v1/workflows/abc", nil))
	serve(handler, httptest.NewRequest(http.MethodGet, "/api/v1/workflows/def", nil))

	n, err := testutil.GatherAndCount(reg, "test_http_requests_total")
	require.NoError(t, err)
	// 两个 id 归并为同一条时间序列
	assert.Equal(t, 1, n)
}

func TestChain_PreservesUnwrap(t *testing.T) {
	var unwrapped bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// websocket 升级依赖 http.ResponseController 找到底层 writer
		_, unwrapped = w.(interface{ Unwrap() http.ResponseWriter })
	})
	collector := metrics.NewCollectorWithRegistry("unwrap", prometheus.NewRegistry(), zap.NewNop())
	handler := Chain(inner, RequestLogger(zap.NewNop()), MetricsMiddleware(collector), OTelTracing())

	serve(handler, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.True(t, unwrapped)
}
