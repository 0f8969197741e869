package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"orderdesk-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if user := UserFromContext(r.Context()); user != nil {
		w.Header().Set("X-Actor", ActorID(r)+":"+user.Role)
	}
	w.WriteHeader(http.StatusOK)
})

func TestAuthAndRoleChain(t *testing.T) {
	utils.SetSecret("test-secret")
	chain := AuthMiddleware(AdminMiddleware(ok))

	operator, err := utils.IssueToken("op-7", "op@example.com", RoleOperator, time.Hour)
	require.NoError(t, err)
	customer, err := utils.IssueToken("cust-1", "c@example.com", "customer", time.Hour)
	require.NoError(t, err)
	expired, err := utils.IssueToken("op-7", "op@example.com", RoleOperator, -time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"operator", operator, http.StatusOK},
		{"customer", customer, http.StatusForbidden},
		{"expired", expired, http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			chain.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "op-7:operator", rec.Header().Get("X-Actor"))
			}
		})
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	utils.SetSecret("test-secret")
	operator, err := utils.IssueToken("op-7", "", RoleOperator, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/settings", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: operator})
	rec := httptest.NewRecorder()
	AuthMiddleware(AdminOnlyMiddleware(ok)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCallbackToken(t *testing.T) {
	cases := []struct {
		name, secret, header string
		status               int
	}{
		{"match", "s3cret", "s3cret", http.StatusOK},
		{"mismatch", "s3cret", "s3cre", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"no secret configured", "", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", nil)
			if tc.header != "" {
				req.Header.Set(CallbackTokenHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			CallbackToken(tc.secret)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := NewCORSMiddleware("https://admin.example.com, https://ops.example.com")(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/orders", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), CallbackTokenHeader)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_RequestID(t *testing.T) {
	h := RequestLogger(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 8)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "edge-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "edge-42", rec.Header().Get(RequestIDHeader))
}

func TestRateLimiter_ByClientIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, RateLimit{Name: "api", Limit: 1, Burst: 2, Key: ByClientIP})
	defer rl.Shutdown()
	h := rl.Middleware()(ok)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_ByOperatorOnDispatchRoutes(t *testing.T) {
	utils.SetSecret("test-secret")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// One dispatch per 30s per operator.
	rl := NewRateLimiter(ctx, RateLimit{Name: "dispatch", Limit: rate.Every(30 * time.Second), Burst: 1, Key: ByOperator})
	defer rl.Shutdown()
	h := AuthMiddleware(AdminMiddleware(rl.Wrap(ok)))

	alice, err := utils.IssueToken("op-alice", "", RoleOperator, time.Hour)
	require.NoError(t, err)
	bob, err := utils.IssueToken("op-bob", "", RoleOperator, time.Hour)
	require.NoError(t, err)

	dispatch := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/o1/dispatch", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		// Same office address for both operators.
		req.Header.Set("X-Forwarded-For", "203.0.113.50")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, dispatch(alice).Code)
	limited := dispatch(alice)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	retry, err := strconv.Atoi(limited.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 30, retry, 1)

	assert.Equal(t, http.StatusOK, dispatch(bob).Code)
}

func TestByOperator_FallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	assert.Equal(t, "ip:198.51.100.7", ByOperator(req))
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, RateLimit{Name: "api", Limit: 10, Burst: 10, CleanupPeriod: time.Hour, ClientTTL: time.Minute})
	defer rl.Shutdown()

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	h := rl.Middleware()(ok)
	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 2, rl.size())

	clock = clock.Add(30 * time.Second)
	rl.cleanup()
	assert.Equal(t, 2, rl.size())

	clock = clock.Add(2 * time.Minute)
	rl.cleanup()
	assert.Zero(t, rl.size())
}
