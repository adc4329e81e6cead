package repository

import (
	"context"
	"errors"

	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/utils"

	"gorm.io/gorm"
)

type TradingSignalRepository interface {
	Create(ctx context.Context, signal *model.TradingSignal, opts ...utils.DBOption) error
	// FindLatest returns the newest signal for (user, symbol), or nil.
	FindLatest(ctx context.Context, userID uint, symbol string) (*model.TradingSignal, error)
	List(ctx context.Context, userID uint, symbol string, limit int) ([]model.TradingSignal, error)
}

type tradingSignalRepository struct {
	db *gorm.DB
}

func NewTradingSignalRepository(db *gorm.DB) TradingSignalRepository {
	return &tradingSignalRepository{db: db}
}

func (r *tradingSignalRepository) Create(ctx context.Context, signal *model.TradingSignal, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(signal).Error
}

func (r *tradingSignalRepository) FindLatest(ctx context.Context, userID uint, symbol string) (*model.TradingSignal, error) {
	var signal model.TradingSignal
	err := utils.ApplyOptions(r.db.WithContext(ctx), newestFirst(userID, symbol)...).First(&signal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &signal, nil
}

func (r *tradingSignalRepository) List(ctx context.Context, userID uint, symbol string, limit int) ([]model.TradingSignal, error) {
	var signals []model.TradingSignal
	opts := newestFirst(userID, symbol)
	if limit > 0 {
		opts = append(opts, utils.WithLimit(limit))
	}
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}

func newestFirst(userID uint, symbol string) []utils.DBOption {
	return []utils.DBOption{
		utils.WithWhere("user_id = ? AND symbol = ?", userID, symbol),
		utils.WithOrder("timestamp DESC, id DESC"),
	}
}
