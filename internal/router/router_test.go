package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suzy-backend/internal/handlers"
	"suzy-backend/internal/middleware"
	"suzy-backend/internal/services"
	"suzy-backend/internal/websocket"
)

const testSecret = "router-test-secret-long-enough-for-hs256"

type denyLimiter struct {
	keys []string
}

func (d *denyLimiter) Check(_ context.Context, key string, limit int) (bool, int, int64) {
	d.keys = append(d.keys, key)
	return false, 0, time.Now().Add(time.Minute).Unix()
}

func newTestRouter(limiter middleware.Limiter) (http.Handler, *middleware.JWTAuth) {
	auth := middleware.NewJWTAuth(testSecret)
	chat := services.NewChatService(nil, nil, nil, nil, nil, nil)
	return New(
		auth,
		limiter,
		20,
		handlers.NewSessionHandler(nil),
		handlers.NewTimerHandler(nil),
		handlers.NewTodoHandler(nil),
		handlers.NewNoteHandler(nil),
		handlers.NewAnalyticsHandler(nil),
		handlers.NewChatHandler(chat),
		handlers.NewFlashcardHandler(nil),
		handlers.NewMockExamHandler(nil),
		websocket.NewHub(nil, auth, nil),
		"http://localhost:5173",
	), auth
}

func bearer(t *testing.T, auth *middleware.JWTAuth, userID uuid.UUID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"name":    "Ada",
		"exp":     time.Now().Add(time.Minute).Unix(),
	}).SignedString(auth.Secret)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(&denyLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsExposed(t *testing.T) {
	r, _ := newTestRouter(&denyLimiter{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(&denyLimiter{})

	paths := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/sessions"},
		{http.MethodGet, "/api/v1/sessions/public"},
		{http.MethodPost, "/api/v1/sessions/" + uuid.NewString() + "/timer/start"},
		{http.MethodPost, "/api/v1/timers/recalculate"},
		{http.MethodGet, "/api/v1/todos"},
		{http.MethodGet, "/api/v1/notes"},
		{http.MethodPut, "/api/v1/notes/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/categories"},
		{http.MethodDelete, "/api/v1/categories/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/analytics/today"},
		{http.MethodGet, "/api/v1/chat/paths"},
		{http.MethodGet, "/api/v1/flashcards/decks"},
		{http.MethodGet, "/api/v1/mock-exams"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(p.method, p.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestChatPaths_WithToken(t *testing.T) {
	r, auth := newTestRouter(&denyLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/paths", nil)
	req.Header.Set("Authorization", bearer(t, auth, uuid.New()))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"paths"`)
}

func TestChatMessage_RateLimitedPerUser(t *testing.T) {
	limiter := &denyLimiter{}
	r, auth := newTestRouter(limiter)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/conversation/"+uuid.NewString()+"/message", nil)
	req.Header.Set("Authorization", bearer(t, auth, userID))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Len(t, limiter.keys, 1)
	assert.Contains(t, limiter.keys[0], userID.String())
	assert.Contains(t, limiter.keys[0], "chat")
}

func TestWebSocket_RequiresToken(t *testing.T) {
	r, _ := newTestRouter(&denyLimiter{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ws?session_id="+uuid.NewString(), nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
