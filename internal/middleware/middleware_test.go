package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func okHandler(t *testing.T, wantUser uuid.UUID, wantName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantUser, GetUserID(r.Context()))
		assert.Equal(t, wantName, GetUserName(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body.Error.Code
}

// signToken mints a token with the claims the identity provider issues.
func signToken(t *testing.T, secret string, userID uuid.UUID, name string, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"name":    name,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth(testSecret)
	userID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSecret, userID, "Ana", time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		auth.Middleware(okHandler(t, userID, "Ana")).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		auth.Middleware(okHandler(t, userID, "")).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rr))
	})

	t.Run("not bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		rr := httptest.NewRecorder()
		auth.Middleware(okHandler(t, userID, "")).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, testSecret, userID, "Ana", -time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		auth.Middleware(okHandler(t, userID, "")).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "TOKEN_EXPIRED", errorCode(t, rr))
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "another-secret", userID, "Ana", time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		auth.Middleware(okHandler(t, userID, "")).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rr))
	})
}

func TestParseToken_RejectsBadSubject(t *testing.T) {
	auth := NewJWTAuth(testSecret)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "not-a-uuid",
		"exp":     time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, _, err = auth.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type stubLimiter struct {
	allow bool
	keys  []string
}

func (s *stubLimiter) Check(ctx context.Context, key string, limit int) (bool, int, int64) {
	s.keys = append(s.keys, key)
	if s.allow {
		return true, limit - 1, 100
	}
	return false, 0, 100
}

func TestRateLimiter_Middleware(t *testing.T) {
	userID := uuid.New()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("allowed requests carry limit headers", func(t *testing.T) {
		limiter := &stubLimiter{allow: true}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUser(req.Context(), userID, "Ana"))
		rr := httptest.NewRecorder()

		NewRateLimiter(limiter, "chat", 20).Middleware(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "20", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "19", rr.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, []string{"chat:" + userID.String()}, limiter.keys)
	})

	t.Run("blocked requests get 429", func(t *testing.T) {
		limiter := &stubLimiter{}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rr := httptest.NewRecorder()

		NewRateLimiter(limiter, "ai", 20).Middleware(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "RATE_LIMITED", errorCode(t, rr))
		assert.Equal(t, []string{"ai:" + req.RemoteAddr}, limiter.keys)
	})
}

func TestRateLimitArgs_UniqueMemberPerCall(t *testing.T) {
	first := rateLimitArgs(1700000000, 60, 20)
	second := rateLimitArgs(1700000000, 60, 20)

	require.Len(t, first, 4)
	assert.Equal(t, []interface{}{int64(1700000000), int64(60), 20}, first[:3])
	member, ok := first[3].(string)
	require.True(t, ok)
	_, err := uuid.Parse(member)
	assert.NoError(t, err)
	assert.NotEqual(t, first[3], second[3])
}

func TestCORS(t *testing.T) {
	handler := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/todos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/todos", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
