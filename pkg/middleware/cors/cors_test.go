package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(opts))
	r.GET("/professors", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func request(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/professors", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAllowedOrigins(t *testing.T) {
	r := newRouter(Options{
		AllowedOrigins: []string{"https://admin.example.org/", "*.ecole.test"},
		ExposedHeaders: []string{"X-Roster-Stale"},
	})

	rec := request(r, http.MethodGet, "https://admin.example.org")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "X-Roster-Stale", rec.Header().Get("Access-Control-Expose-Headers"))

	rec = request(r, http.MethodGet, "https://campus.ecole.test")
	assert.Equal(t, "https://campus.ecole.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = request(r, http.MethodGet, "https://evil.example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = request(r, http.MethodOptions, "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPreflight(t *testing.T) {
	r := newRouter(Options{AllowedOrigins: []string{"https://admin.example.org"}})

	rec := request(r, http.MethodOptions, "https://admin.example.org")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestOpenPolicy(t *testing.T) {
	r := newRouter(Options{})

	rec := request(r, http.MethodGet, "https://anywhere.test")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = request(r, http.MethodGet, "")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
