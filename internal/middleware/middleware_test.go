package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func signed(t *testing.T, claims JWTClaims, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func protectedRouter() *gin.Engine {
	r := gin.New()
	g := r.Group("/", JWTAuth(testSecret), RequireBranchAccess())
	g.GET("/branches/:branch_id/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).Operator())
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := protectedRouter()
	valid := JWTClaims{
		UserID: "u-1", Username: "ayse", Rol: RoleCashier,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}

	w := do(r, "/branches/7/ping", signed(t, valid, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ayse", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "/branches/7/ping", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/branches/7/ping", signed(t, valid, "other")).Code)

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	assert.Equal(t, http.StatusUnauthorized, do(r, "/branches/7/ping", signed(t, expired, testSecret)).Code)
}

func TestRequireBranchAccess(t *testing.T) {
	r := protectedRouter()
	branch := int64(7)
	claims := JWTClaims{Username: "ayse", Rol: RoleCashier, BranchID: &branch}
	tok := signed(t, claims, testSecret)

	assert.Equal(t, http.StatusOK, do(r, "/branches/7/ping", tok).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/branches/8/ping", tok).Code)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.GET("/x", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, "/x", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "/x", "").Code)
	w := do(r, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, do(r, "/x", "").Code)

	now = now.Add(2 * time.Minute)
	rl.purge()
	assert.Empty(t, rl.entries)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := do(r, "/x", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}
