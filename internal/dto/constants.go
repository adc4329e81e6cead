package dto

// Timeframes accepted by the market data sources.
const (
	Timeframe1Min  = "1Min"
	Timeframe5Min  = "5Min"
	Timeframe15Min = "15Min"
	Timeframe1Hour = "1Hour"
	Timeframe1Day  = "1Day"
)

var ValidTimeframes = []string{Timeframe1Min, Timeframe5Min, Timeframe15Min, Timeframe1Hour, Timeframe1Day}

// Reasons reported by TradeExecutor.Run.
const (
	ReasonBotStopped        = "bot stopped"
	ReasonBotStateError     = "bot state unavailable"
	ReasonFetchFailed       = "fetch failed"
	ReasonNoData            = "no closes returned"
	ReasonInsufficientData  = "insufficient data"
	ReasonNoSignal          = "no signal"
	ReasonSellSignal        = "sell signal"
	ReasonPositionExists    = "active position exists"
	ReasonTradeFailed       = "trade failed"
	ReasonPositionOpened    = "position opened"
	ReasonPositionPending   = "position pending"
	ReasonUnexpectedFailure = "unexpected failure"
)
