package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func send(r *gin.Engine, method, origin string, preflight bool) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine([]string{"http://localhost:5173/"})
	w := send(r, http.MethodOptions, "http://LOCALHOST:5173", true)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://LOCALHOST:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestCORSSimpleRequest(t *testing.T) {
	r := newEngine([]string{"http://localhost:5173"})
	w := send(r, http.MethodGet, "http://localhost:5173", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Max-Age"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	r := newEngine([]string{"http://localhost:5173"})
	w := send(r, http.MethodGet, "http://evil.example", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}} {
		r := newEngine(origins)
		w := send(r, http.MethodGet, "https://portal.example", false)
		assert.Equal(t, "https://portal.example", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORSWithoutOrigin(t *testing.T) {
	r := newEngine(nil)
	w := send(r, http.MethodGet, "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}
