package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Options configures the cross-origin policy of the admin API.
type Options struct {
	// AllowedOrigins lists exact origins or "*.domain" suffix patterns. An
	// empty list allows any origin without credentials.
	AllowedOrigins []string
	// ExposedHeaders are readable by browser clients, e.g. the roster
	// staleness flag and export filenames.
	ExposedHeaders []string
}

var allowedHeaders = strings.Join([]string{"Authorization", "Content-Type", "X-Request-ID"}, ", ")

// New returns a CORS middleware enforcing opts.
func New(opts Options) gin.HandlerFunc {
	exact := make(map[string]struct{}, len(opts.AllowedOrigins))
	var suffixes []string
	for _, origin := range opts.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case strings.HasPrefix(origin, "*."):
			suffixes = append(suffixes, origin[1:])
		default:
			exact[origin] = struct{}{}
		}
	}
	open := len(exact) == 0 && len(suffixes) == 0
	exposed := strings.Join(opts.ExposedHeaders, ", ")

	allowed := func(origin string) bool {
		origin = strings.TrimRight(origin, "/")
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(origin, suffix) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case open:
			h.Set("Access-Control-Allow-Origin", "*")
		case allowed(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		default:
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		if exposed != "" {
			h.Set("Access-Control-Expose-Headers", exposed)
		}
		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
