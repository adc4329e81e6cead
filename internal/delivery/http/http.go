package http

import (
	"context"
	"net/http"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/service"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency for GET /health.
type HealthCheck func(ctx context.Context) error

type HttpAPIHandler struct {
	echo         *echo.Echo
	validator    *goValidator.Validate
	service      *service.Service
	healthChecks map[string]HealthCheck
}

func NewHttpAPIHandler(ctx context.Context, echo *echo.Echo, validator *goValidator.Validate, service *service.Service, healthChecks map[string]HealthCheck) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:         echo,
		validator:    validator,
		service:      service,
		healthChecks: healthChecks,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	h.echo.GET("/health", h.Health)

	base := h.echo.Group("/api")
	h.SetupJobs(base)
	h.SetupTrading(base)
}

func (h *HttpAPIHandler) Health(c echo.Context) error {
	status := map[string]string{}
	code := http.StatusOK
	for name, check := range h.healthChecks {
		if err := check(c.Request().Context()); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	return c.JSON(code, dto.NewBaseResponse(code, http.StatusText(code), status))
}

// bindAndValidate binds path, query and body into req and validates it. A
// non-nil response should be sent back as is.
func (h *HttpAPIHandler) bindAndValidate(c echo.Context, req interface{}) *dto.BaseResponse {
	if err := c.Bind(req); err != nil {
		return dto.NewBadRequestResponse("invalid request: " + err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return dto.NewBadRequestResponse(err.Error())
	}
	return nil
}
