package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/cache"
	"golang-autotrader/pkg/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BotStateRepository interface {
	// Get returns the state for symbol, or nil when no row exists.
	Get(ctx context.Context, symbol string) (*model.BotState, error)
	List(ctx context.Context) ([]model.BotState, error)
	SetRunning(ctx context.Context, symbol string, running bool) (*model.BotState, error)
	// RecordRun stores run diagnostics. A missing row is left missing.
	RecordRun(ctx context.Context, symbol string, runAt time.Time, errorMessage *string) error
}

type botStateRepository struct {
	db *gorm.DB
}

func NewBotStateRepository(db *gorm.DB) BotStateRepository {
	return &botStateRepository{db: db}
}

func (r *botStateRepository) Get(ctx context.Context, symbol string) (*model.BotState, error) {
	var state model.BotState
	if err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *botStateRepository) List(ctx context.Context) ([]model.BotState, error) {
	var states []model.BotState
	if err := r.db.WithContext(ctx).Order("symbol").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

func (r *botStateRepository) SetRunning(ctx context.Context, symbol string, running bool) (*model.BotState, error) {
	state := model.BotState{Symbol: symbol, Running: running}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"running", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, symbol)
}

func (r *botStateRepository) RecordRun(ctx context.Context, symbol string, runAt time.Time, errorMessage *string) error {
	return r.db.WithContext(ctx).Model(&model.BotState{}).
		Where("symbol = ?", symbol).
		Updates(map[string]interface{}{
			"last_run_at":   runAt,
			"error_message": errorMessage,
		}).Error
}

// cachedBotStateRepository keeps Get results for a short TTL so every tick of
// every user does not hit the database.
type cachedBotStateRepository struct {
	inner BotStateRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedBotStateRepository(inner BotStateRepository, c cache.Cache, ttl time.Duration) BotStateRepository {
	return &cachedBotStateRepository{inner: inner, cache: c, ttl: ttl}
}

func (r *cachedBotStateRepository) Get(ctx context.Context, symbol string) (*model.BotState, error) {
	key := fmt.Sprintf(common.KEY_BOT_STATE, symbol)
	if state, ok := cache.GetFromCache[*model.BotState](r.cache, key); ok {
		return state, nil
	}
	state, err := r.inner.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, state, r.ttl)
	return state, nil
}

func (r *cachedBotStateRepository) List(ctx context.Context) ([]model.BotState, error) {
	return r.inner.List(ctx)
}

func (r *cachedBotStateRepository) SetRunning(ctx context.Context, symbol string, running bool) (*model.BotState, error) {
	r.cache.Delete(fmt.Sprintf(common.KEY_BOT_STATE, symbol))
	return r.inner.SetRunning(ctx, symbol, running)
}

func (r *cachedBotStateRepository) RecordRun(ctx context.Context, symbol string, runAt time.Time, errorMessage *string) error {
	return r.inner.RecordRun(ctx, symbol, runAt, errorMessage)
}
