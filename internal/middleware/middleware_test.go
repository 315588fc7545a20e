package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", Auth(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})
	r.GET("/public", OptionalAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, "%v", IsAuthenticated(c))
	})
	return r
}

func TestAuth(t *testing.T) {
	token, err := jwt.Sign("editor-1", time.Minute)
	require.NoError(t, err)
	r := authRouter()

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
		body   string
	}{
		{"bearer header", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "editor-1"},
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: tokenCookie, Value: token}) }, http.StatusOK, "editor-1"},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"garbage", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := authRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))
	assert.Equal(t, "false", w.Body.String())

	token, err := jwt.Sign("editor-1", time.Minute)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public?token="+token, nil))
	assert.Equal(t, "true", w.Body.String())
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := jwt.Sign("editor-1", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestShouldSkipCachePath(t *testing.T) {
	skip := []string{"/api/*", "/health"}
	assert.True(t, shouldSkipCachePath("/api/v1/pages", skip))
	assert.True(t, shouldSkipCachePath("/health", skip))
	assert.False(t, shouldSkipCachePath("/health/deep", skip))
	assert.False(t, shouldSkipCachePath("/docs/setup/latest/", skip))
}

func TestHasBypassQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for target, want := range map[string]bool{
		"/docs/":              false,
		"/docs/?preview_id=4": true,
		"/docs/?ts=1":         true,
		"/docs/?s=search":     false,
	} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		assert.Equal(t, want, hasBypassQuery(c), target)
	}
}

func TestShouldSkipIdempotence(t *testing.T) {
	skip := []string{"/api/v1/versions/actions/view"}
	assert.True(t, shouldSkipIdempotence(http.MethodPost, "/api/v1/versions/actions/view/", skip))
	assert.False(t, shouldSkipIdempotence(http.MethodPost, "/api/v1/versions/actions/clone", skip))
	assert.True(t, shouldSkipIdempotence(http.MethodDelete, "/api/v1/pages/3", skip))
}

func TestIsCacheableResponse(t *testing.T) {
	plain := http.Header{}
	private := http.Header{"Cache-Control": []string{"private, max-age=0"}}

	assert.True(t, isCacheableResponse(http.StatusOK, plain))
	assert.True(t, isCacheableResponse(http.StatusFound, plain))
	assert.False(t, isCacheableResponse(http.StatusNotFound, plain))
	assert.False(t, isCacheableResponse(http.StatusOK, private))
}

func TestPageCacheKeyIncludesHost(t *testing.T) {
	a := httptest.NewRequest(http.MethodGet, "http://Docs.Example.com/setup/latest/?s=x", nil)
	b := httptest.NewRequest(http.MethodGet, "http://other.example.com/setup/latest/?s=x", nil)

	assert.Equal(t, PageCachePrefix+"docs.example.com/setup/latest/?s=x", pageCacheKey(a))
	assert.NotEqual(t, pageCacheKey(a), pageCacheKey(b))
}

func TestHTTPCacheWithoutRedisPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPCache(nil, HTTPCacheOptions{}))
	r.GET("/setup/", func(c *gin.Context) { c.String(http.StatusOK, "page") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/setup/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "page", w.Body.String())
	assert.Empty(t, w.Header().Get(pageCacheHeader))
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, accessLevel(http.StatusFound))
	assert.Equal(t, zapcore.WarnLevel, accessLevel(http.StatusNotFound))
	assert.Equal(t, zapcore.ErrorLevel, accessLevel(http.StatusBadGateway))
}

func TestRequestFingerprint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fingerprint := func(body, header, editor string) (string, bool) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/versions/actions/clone", strings.NewReader(body))
		if header != "" {
			c.Request.Header.Set(idempotenceHeader, header)
		}
		if editor != "" {
			c.Set(ContextKeyUserID, editor)
		}
		return requestFingerprint(c)
	}

	key, ok := fingerprint("", "abc", "")
	assert.True(t, ok)
	assert.Equal(t, "abc", key)

	_, ok = fingerprint("", "", "")
	assert.False(t, ok)

	a, _ := fingerprint(`{"page":3}`, "", "editor-1")
	b, _ := fingerprint(`{"page":3}`, "", "editor-2")
	again, _ := fingerprint(`{"page":3}`, "", "editor-1")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
}

func TestRateLimitWindowKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "nine3v:rate_limit:10.0.0.1:1700000000", rateLimitWindowKey("10.0.0.1", now))
}
