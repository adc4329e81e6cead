package service

import (
	"context"
	"fmt"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/internal/repository"
	"golang-autotrader/pkg/logger"
)

const maxPositionsPage = 500

// TradingService serves the read side and bot switches for the API.
type TradingService interface {
	ListPositions(ctx context.Context, param dto.GetPositionsParam) ([]model.Position, error)
	ListSignals(ctx context.Context, userID uint, symbol string, limit int) ([]model.TradingSignal, error)
	ListBotStates(ctx context.Context) ([]model.BotState, error)
	SetBotRunning(ctx context.Context, symbol string, running bool) (*model.BotState, error)
	MarketStatus(now time.Time) dto.MarketStatus
}

type tradingService struct {
	cfg          *config.Config
	log          *logger.Logger
	calendar     MarketCalendar
	positionRepo repository.PositionRepository
	signalRepo   repository.TradingSignalRepository
	botStateRepo repository.BotStateRepository
}

func NewTradingService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, calendar MarketCalendar) TradingService {
	return &tradingService{
		cfg:          cfg,
		log:          log,
		calendar:     calendar,
		positionRepo: repo.PositionRepo,
		signalRepo:   repo.TradingSignalRepo,
		botStateRepo: repo.BotStateRepo,
	}
}

func (s *tradingService) ListPositions(ctx context.Context, param dto.GetPositionsParam) ([]model.Position, error) {
	if param.Limit == nil || *param.Limit <= 0 || *param.Limit > maxPositionsPage {
		limit := maxPositionsPage
		param.Limit = &limit
	}
	positions, err := s.positionRepo.Get(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return positions, nil
}

func (s *tradingService) ListSignals(ctx context.Context, userID uint, symbol string, limit int) ([]model.TradingSignal, error) {
	if limit <= 0 || limit > maxPositionsPage {
		limit = maxPositionsPage
	}
	return s.signalRepo.List(ctx, userID, symbol, limit)
}

func (s *tradingService) ListBotStates(ctx context.Context) ([]model.BotState, error) {
	return s.botStateRepo.List(ctx)
}

// SetBotRunning flips the run switch for symbol. Orders already in flight
// are left alone.
func (s *tradingService) SetBotRunning(ctx context.Context, symbol string, running bool) (*model.BotState, error) {
	state, err := s.botStateRepo.SetRunning(ctx, symbol, running)
	if err != nil {
		return nil, fmt.Errorf("set bot state for %s: %w", symbol, err)
	}
	s.log.InfoContext(ctx, "Bot state changed",
		logger.StringField("symbol", symbol),
		logger.BoolField("running", running),
	)
	return state, nil
}

func (s *tradingService) MarketStatus(now time.Time) dto.MarketStatus {
	open, reason := s.calendar.IsOpen(now, s.cfg.Market.TimeZone)
	return dto.MarketStatus{
		Open:     open,
		Reason:   reason,
		TimeZone: s.cfg.Market.TimeZone,
		Now:      now,
	}
}
