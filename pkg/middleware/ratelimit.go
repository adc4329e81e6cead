package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// NewRateLimiterMiddleware limits each client IP to perSecond requests with the given burst.
func NewRateLimiterMiddleware(perSecond float64, burst int) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(perSecond),
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden, Response{
				Status:  http.StatusForbidden,
				Message: "rate limiter error",
			})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, Response{
				Status:  http.StatusTooManyRequests,
				Message: "too many requests",
			})
		},
	}

	return middleware.RateLimiterWithConfig(config)
}
