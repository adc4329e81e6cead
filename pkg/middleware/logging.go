package middleware

import (
	"time"

	"golang-autotrader/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const HeaderRequestID = "X-Request-ID"

// NewRequestLogger attaches a request-scoped logger to the request context and
// logs one line per request.
func NewRequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			requestID := req.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, requestID)

			reqLog := log.With(logger.StringField("request_id", requestID))
			c.SetRequest(req.WithContext(logger.NewContext(req.Context(), reqLog)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			reqLog.Info("http request",
				logger.StringField("method", req.Method),
				logger.StringField("path", c.Path()),
				logger.IntField("status", c.Response().Status),
				logger.DurationField("latency", time.Since(start)),
			)
			return nil
		}
	}
}
