package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenBucketRefills(t *testing.T) {
	clock := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(2, 60)
	l.now = func() time.Time { return clock }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "keys have separate buckets")

	clock = clock.Add(1500 * time.Millisecond)
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
}

func TestLimitByKey(t *testing.T) {
	l := NewSimpleTokenBucket(1, 1)
	r := gin.New()
	r.Use(SecurityHeaders(false))
	r.GET("/scan", l.Limit(func(c *gin.Context) string { return c.GetHeader("X-User") }), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/scan", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, do("u1").Code)
	w := do("u1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusNoContent, do("u2").Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
