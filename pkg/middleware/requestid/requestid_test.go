package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, incoming string) (string, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var fromGin, fromCtx string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(Header, incoming)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Header().Get(Header), fromGin, fromCtx
}

func TestMiddlewareKeepsCallerID(t *testing.T) {
	header, fromGin, fromCtx := serve(t, "front-42")
	assert.Equal(t, "front-42", header)
	assert.Equal(t, "front-42", fromGin)
	assert.Equal(t, "front-42", fromCtx)
}

func TestMiddlewareGeneratesID(t *testing.T) {
	for _, incoming := range []string{"", "has space", strings.Repeat("x", maxLength+1)} {
		header, fromGin, _ := serve(t, incoming)
		_, err := uuid.Parse(header)
		require.NoError(t, err, incoming)
		assert.Equal(t, header, fromGin)
	}
}

func TestFromContextWithoutID(t *testing.T) {
	assert.Empty(t, FromContext(nil)) //nolint:staticcheck
	assert.Empty(t, FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
