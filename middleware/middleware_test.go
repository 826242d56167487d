package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/chat", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := OriginChecker(nil)
	assert.True(t, open(req("https://evil.example")))

	check := OriginChecker([]string{"https://app.example/", "http://localhost:3000"})
	assert.True(t, check(req("https://app.example")))
	assert.True(t, check(req("HTTPS://APP.EXAMPLE")))
	assert.True(t, check(req("http://localhost:3000")))
	assert.True(t, check(req("")))
	assert.False(t, check(req("https://evil.example")))
	assert.False(t, check(req("http://app.example")))
}

func TestManagerAndRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var order []string
	mgr := NewManager(func(c *gin.Context) { order = append(order, "first") })
	mgr.Add(func(c *gin.Context) {
		order = append(order, "second")
		if c.GetHeader("X-Block") != "" {
			c.AbortWithStatus(http.StatusTeapot)
		}
	})

	r := gin.New()
	r.Use(Recovery(), RequestLogger(), mgr.Use())
	rt := Routes{Auth: func(c *gin.Context) {
		if c.GetHeader("X-User") == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
		}
	}}
	rt.GET(r, "/open", func(c *gin.Context) { c.Status(http.StatusOK) }, RouteOpt{})
	rt.GET(r, "/closed", func(c *gin.Context) { c.Status(http.StatusOK) }, RouteOpt{IsAuth: true})
	rt.POST(r, "/boom", func(c *gin.Context) { panic("boom") }, RouteOpt{})

	do := func(method, path string, hdr map[string]string) int {
		req := httptest.NewRequest(method, path, nil)
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/open", nil))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, http.StatusTeapot, do(http.MethodGet, "/open", map[string]string{"X-Block": "1"}))
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/closed", nil))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/closed", map[string]string{"X-User": "u"}))
	assert.Equal(t, http.StatusInternalServerError, do(http.MethodPost, "/boom", nil))

	mgr.Clear()
	order = nil
	do(http.MethodGet, "/open", nil)
	assert.Empty(t, order)
}

func TestRequestIDThroughManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewManager(RequestID()).Use(), RequestLogger())
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDKey))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDKey, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDKey))
}
