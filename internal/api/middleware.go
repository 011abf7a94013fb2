package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
)

const ownerKey = "owner"

// DefaultOwnerHeader carries the user id set by the auth proxy.
const DefaultOwnerHeader = "X-User-ID"

// NewRequestLogger logs one line per request.
func NewRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if log == nil {
				return nil
			}
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
				logger.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			log.Debug("request", fields...)
			return nil
		},
	})
}

// ownerMiddleware resolves the request owner. A missing header means anonymous.
func (c *Controller) ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	header := DefaultOwnerHeader
	if c.settings != nil && c.settings.Server.OwnerHeader != "" {
		header = c.settings.Server.OwnerHeader
	}
	return func(ctx echo.Context) error {
		ctx.Set(ownerKey, model.Owner(strings.TrimSpace(ctx.Request().Header.Get(header))))
		return next(ctx)
	}
}

func ownerFrom(ctx echo.Context) model.Owner {
	owner, _ := ctx.Get(ownerKey).(model.Owner)
	return owner
}
