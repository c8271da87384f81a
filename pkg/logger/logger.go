package logger

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/prof-roster-api/pkg/config"
	"github.com/noah-isme/prof-roster-api/pkg/middleware/requestid"
	"github.com/noah-isme/prof-roster-api/pkg/response"
)

const serviceName = "prof-roster-api"

// quietRoutes are polled by orchestrators and only logged at debug level.
var quietRoutes = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// New builds the process logger. JSON is the default encoding; LOG_FORMAT=console
// switches to the human readable encoder. An unknown LOG_LEVEL falls back to
// info.
func New(cfg *config.Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Log.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Log.Level))); err != nil {
			level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Env != config.EnvProduction {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	zapCfg.Encoding = "json"
	if cfg.Log.Format == "console" {
		zapCfg.Encoding = "console"
	}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.MessageKey = "msg"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	logr, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logr.With(zap.String("service", serviceName), zap.String("env", cfg.Env)), nil
}

// ForRequest annotates l with the request id carried by ctx. Contexts detached
// from their request with context.WithoutCancel keep the id.
func ForRequest(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	if id := requestid.FromContext(ctx); id != "" {
		return l.With(zap.String("request_id", id))
	}
	return l
}

// Middleware writes one access line per request. Client errors are logged at
// warn level and server errors at error level.
func Middleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestid.Value(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
		}
		if yearID := c.Query("year_id"); yearID != "" {
			fields = append(fields, zap.String("year_id", yearID))
		}
		if yearLabel := c.Query("year_label"); yearLabel != "" {
			fields = append(fields, zap.String("year_label", yearLabel))
		}
		if c.Writer.Header().Get(response.StaleHeader) != "" {
			fields = append(fields, zap.Bool("roster_stale", true))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			l.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			l.Warn("request rejected", fields...)
		default:
			if _, quiet := quietRoutes[route]; quiet {
				l.Debug("request served", fields...)
				return
			}
			l.Info("request served", fields...)
		}
	}
}
