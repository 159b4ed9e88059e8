package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"axis-blue-backend/internal/backend"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 2)
	r := gin.New()
	r.Use(RateLimiter(limiter))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping").Code)

	w := serve(r, http.MethodGet, "/ping")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestIPRateLimiter_Prune(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(rate.Limit(10), 5)
	limiter.now = func() time.Time { return now }

	limiter.GetLimiter("10.0.0.1")
	now = now.Add(10 * time.Minute)
	limiter.GetLimiter("10.0.0.2")
	assert.Same(t, limiter.GetLimiter("10.0.0.2"), limiter.GetLimiter("10.0.0.2"))

	assert.Equal(t, 1, limiter.Prune(5*time.Minute))
	assert.Equal(t, 1, limiter.Len())
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), time.Minute))
	r.GET("/catalog", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/missing", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	first := serve(r, http.MethodGet, "/catalog")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(r, http.MethodGet, "/catalog")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	serve(r, http.MethodGet, "/missing")
	serve(r, http.MethodGet, "/missing")
	assert.Equal(t, 3, calls)
}

type settingsFunc func() (backend.Settings, error)

func (f settingsFunc) Settings() (backend.Settings, error) { return f() }

type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

func TestRequireConfig(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "configured", expectedCode: http.StatusOK},
		{name: "missing address", err: &backend.ConfigError{Missing: []string{"url"}}, expectedCode: http.StatusServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequireConfig(settingsFunc(func() (backend.Settings, error) {
				return backend.Settings{Kind: backend.KindREST}, tc.err
			})))
			r.GET("/day", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := serve(r, http.MethodGet, "/day")
			assert.Equal(t, tc.expectedCode, w.Code)
			if tc.err != nil {
				assert.Contains(t, w.Body.String(), `"needs_config":true`)
				assert.Contains(t, w.Body.String(), `"error":"needs configuration"`)
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	handler := func(c *gin.Context) {
		token, _ := backend.TokenFrom(c.Request.Context())
		c.String(http.StatusOK, token)
	}

	r := gin.New()
	r.GET("/in", RequireSession(staticToken("tok")), handler)
	r.GET("/out", RequireSession(staticToken("")), handler)

	w := serve(r, http.MethodGet, "/in")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", w.Body.String())

	w = serve(r, http.MethodGet, "/out")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"not signed in"}`, w.Body.String())
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/ok")
	serve(r, http.MethodGet, "/boom")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, "/ok", entries[0].ContextMap()["path"])
		assert.Equal(t, zap.ErrorLevel, entries[1].Level)
		assert.EqualValues(t, 500, entries[1].ContextMap()["status"])
	}
}
