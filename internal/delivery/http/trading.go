package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupTrading(base *echo.Group) {
	v1 := base.Group("/v1")
	{
		v1.POST("/trading/run", h.RunTrade)
		v1.POST("/trading/exits", h.CheckExits)
		v1.POST("/trading/reconcile/:id", h.Reconcile)
		v1.GET("/trading/last-error", h.LastError)
		v1.GET("/positions", h.ListPositions)
		v1.GET("/signals", h.ListSignals)
		v1.GET("/bots", h.ListBots)
		v1.PUT("/bots/:symbol", h.UpdateBotState)
		v1.GET("/market/status", h.MarketStatus)
	}
}

func (h *HttpAPIHandler) RunTrade(c echo.Context) error {
	req := new(dto.RunParam)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}
	req.Symbol = strings.ToUpper(req.Symbol)

	result := h.service.TradeExecutor.Run(c.Request().Context(), *req)
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(result.Reason, result))
}

func (h *HttpAPIHandler) CheckExits(c echo.Context) error {
	req := new(dto.CheckExitsRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}
	symbol := strings.ToUpper(req.Symbol)

	closed := h.service.ExitMonitor.CheckExits(c.Request().Context(), symbol, req.UserID)
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", dto.ExitCheckResult{
		UserID:    req.UserID,
		Symbol:    symbol,
		ClosedAny: closed,
	}))
}

func (h *HttpAPIHandler) Reconcile(c echo.Context) error {
	req := new(dto.ReconcileRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	outcome, err := h.service.OrderReconciler.Reconcile(c.Request().Context(), req.PositionID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("position not found"))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewInternalErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(string(outcome.Type), outcome))
}

func (h *HttpAPIHandler) LastError(c echo.Context) error {
	req := new(dto.LastErrorRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}
	symbol := strings.ToUpper(req.Symbol)

	msg, found := h.service.TradeExecutor.LastError(req.UserID, symbol)
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", dto.LastErrorResponse{
		UserID:    req.UserID,
		Symbol:    symbol,
		LastError: msg,
		Found:     found,
	}))
}

func (h *HttpAPIHandler) ListPositions(c echo.Context) error {
	req := new(dto.ListPositionsRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	param := dto.GetPositionsParam{}
	if req.UserID > 0 {
		param.UserID = &req.UserID
	}
	if req.Symbol != "" {
		param.Symbols = []string{strings.ToUpper(req.Symbol)}
	}
	if req.Status != "" {
		param.Statuses = []model.PositionStatus{model.PositionStatus(req.Status)}
	}
	if req.Limit > 0 {
		param.Limit = &req.Limit
	}

	positions, err := h.service.TradingService.ListPositions(c.Request().Context(), param)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewInternalErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", positions))
}

func (h *HttpAPIHandler) ListSignals(c echo.Context) error {
	req := new(dto.ListSignalsRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	signals, err := h.service.TradingService.ListSignals(c.Request().Context(), req.UserID, strings.ToUpper(req.Symbol), req.Limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewInternalErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", signals))
}

func (h *HttpAPIHandler) ListBots(c echo.Context) error {
	states, err := h.service.TradingService.ListBotStates(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewInternalErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", states))
}

func (h *HttpAPIHandler) UpdateBotState(c echo.Context) error {
	req := new(dto.UpdateBotStateRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	state, err := h.service.TradingService.SetBotRunning(c.Request().Context(), strings.ToUpper(req.Symbol), *req.Running)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewInternalErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", state))
}

func (h *HttpAPIHandler) MarketStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", h.service.TradingService.MarketStatus(time.Now())))
}
