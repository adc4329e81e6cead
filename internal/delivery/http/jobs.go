package http

import (
	"net/http"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupJobs(base *echo.Group) {
	v1 := base.Group("/v1/jobs")
	{
		v1.GET("", h.ListJobs)
		v1.POST("/run", h.RunJobs)
	}
}

func (h *HttpAPIHandler) ListJobs(c echo.Context) error {
	if h.service.SchedulerService == nil {
		return c.JSON(http.StatusServiceUnavailable, dto.NewBaseResponse(http.StatusServiceUnavailable, "job scheduler disabled", nil))
	}
	jobs, err := h.service.SchedulerService.GetJobSchedule(c.Request().Context(), model.GetJobParam{})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewInternalErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", jobs))
}

func (h *HttpAPIHandler) RunJobs(c echo.Context) error {
	if h.service.SchedulerService == nil {
		return c.JSON(http.StatusServiceUnavailable, dto.NewBaseResponse(http.StatusServiceUnavailable, "job scheduler disabled", nil))
	}

	req := new(dto.RunJobRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	ctx := c.Request().Context()
	if len(req.JobIDs) == 0 {
		response := dto.NewBaseResponse(http.StatusOK, "Start running jobs", nil)
		if err := h.service.SchedulerService.Execute(ctx); err != nil {
			response.Code = http.StatusInternalServerError
			response.Message = err.Error()
		}
		return c.JSON(response.Code, response)
	}

	failed := map[uint]string{}
	for _, id := range req.JobIDs {
		if err := h.service.SchedulerService.RunJobTask(ctx, id); err != nil {
			failed[id] = err.Error()
		}
	}
	if len(failed) > 0 {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, "some jobs failed to start", failed))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Jobs started", req.JobIDs))
}
