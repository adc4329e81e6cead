package dto

import "net/http"

type BaseResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewBaseResponse(code int, message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func NewBadRequestResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusBadRequest, message, nil)
}

func NewNotFoundResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusNotFound, message, nil)
}

func NewInternalErrorResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusInternalServerError, message, nil)
}

func NewSuccessResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusOK, message, data)
}

// RunJobRequest runs the listed jobs now. An empty list runs one scheduler tick.
type RunJobRequest struct {
	JobIDs []uint `json:"job_ids" validate:"omitempty,dive,gt=0"`
}

type CheckExitsRequest struct {
	Symbol string `json:"symbol" validate:"required,max=20"`
	UserID uint   `json:"user_id" validate:"required"`
}

type ReconcileRequest struct {
	PositionID uint `param:"id" validate:"required"`
}

type UpdateBotStateRequest struct {
	Symbol  string `param:"symbol" validate:"required,max=20"`
	Running *bool  `json:"running" validate:"required"`
}

type ListPositionsRequest struct {
	UserID uint   `query:"user_id"`
	Symbol string `query:"symbol" validate:"omitempty,max=20"`
	Status string `query:"status" validate:"omitempty,oneof=pending open closed_profit closed_loss cancelled"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

type LastErrorRequest struct {
	Symbol string `query:"symbol" validate:"required,max=20"`
	UserID uint   `query:"user_id" validate:"required"`
}

type ListSignalsRequest struct {
	UserID uint   `query:"user_id" validate:"required"`
	Symbol string `query:"symbol" validate:"required,max=20"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

type LastErrorResponse struct {
	UserID    uint   `json:"user_id"`
	Symbol    string `json:"symbol"`
	LastError string `json:"last_error,omitempty"`
	Found     bool   `json:"found"`
}
