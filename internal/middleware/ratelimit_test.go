package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admission-api/internal/models"
)

type stubCounter struct {
	counts map[string]int64
}

func (s *stubCounter) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.counts == nil {
		s.counts = make(map[string]int64)
	}
	s.counts[key]++
	return s.counts[key], nil
}

func performLimited(t *testing.T, handler gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	handler(c)
	if !c.IsAborted() {
		c.Status(http.StatusOK)
	}
	return w.Code
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	counter := &stubCounter{}
	handler := RateLimit(counter, nil, zap.NewNop(), "logout", 2, time.Minute)

	assert.Equal(t, http.StatusOK, performLimited(t, handler))
	assert.Equal(t, http.StatusOK, performLimited(t, handler))
	assert.Equal(t, http.StatusTooManyRequests, performLimited(t, handler))
}

func TestRateLimitDisabledWithoutCounter(t *testing.T) {
	handler := RateLimit(nil, nil, zap.NewNop(), "register", 1, time.Second)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, performLimited(t, handler))
	}
}

func TestRequireRolesBlocksEnvoy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := RequireStaff()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/admissions", nil)
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", RoleID: models.RoleIDEnvoy})
	handler(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/admissions", nil)
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "u2", RoleID: models.RoleIDManager})
	handler(c)
	if !c.IsAborted() {
		c.Status(http.StatusOK)
	}
	assert.Equal(t, http.StatusOK, w.Code)
}
