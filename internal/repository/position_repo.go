package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/utils"

	"gorm.io/gorm"
)

type PositionRepository interface {
	// Create inserts a pending or open position. It returns
	// ErrActivePositionExists if (user, symbol) already has an active one.
	Create(ctx context.Context, position *model.Position, opts ...utils.DBOption) error
	// FindActive returns the pending or open position for (user, symbol), or nil.
	FindActive(ctx context.Context, userID uint, symbol string) (*model.Position, error)
	FindAllOpen(ctx context.Context, symbol string, userID uint) ([]model.Position, error)
	FindByID(ctx context.Context, id uint) (*model.Position, error)
	Get(ctx context.Context, param dto.GetPositionsParam) ([]model.Position, error)
	// UpdateStatus applies one state machine transition with a conditional
	// update on the current status. A lost race returns ErrInvalidTransition.
	UpdateStatus(ctx context.Context, param dto.UpdatePositionStatusParam, opts ...utils.DBOption) (*model.Position, error)
	UpdateSafetyOrders(ctx context.Context, id uint, orders dto.SafetyOrders) error
	UpdateCurrentPrice(ctx context.Context, id uint, price float64) error
	// OpenKeys lists the distinct (user, symbol) pairs with an open position.
	OpenKeys(ctx context.Context) ([]dto.UserSymbol, error)
}

type positionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) Create(ctx context.Context, position *model.Position, opts ...utils.DBOption) error {
	if !position.Status.IsActive() {
		return fmt.Errorf("create position with status %s: %w", position.Status, ErrInvalidTransition)
	}

	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Transaction(func(tx *gorm.DB) error {
		// released on commit or rollback
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", position.Key()).Error; err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}

		var count int64
		err := tx.Model(&model.Position{}).
			Where("user_id = ? AND symbol = ? AND status IN ?", position.UserID, position.Symbol, model.ActivePositionStatuses).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrActivePositionExists
		}

		return tx.Create(position).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActivePositionExists
		}
		return err
	}
	return nil
}

func (r *positionRepository) FindActive(ctx context.Context, userID uint, symbol string) (*model.Position, error) {
	var position model.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND status IN ?", userID, symbol, model.ActivePositionStatuses).
		Order("id DESC").
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

func (r *positionRepository) FindAllOpen(ctx context.Context, symbol string, userID uint) ([]model.Position, error) {
	var positions []model.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, model.PositionOpen).
		Order("id ASC").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepository) FindByID(ctx context.Context, id uint) (*model.Position, error) {
	var position model.Position
	if err := r.db.WithContext(ctx).First(&position, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &position, nil
}

func (r *positionRepository) Get(ctx context.Context, param dto.GetPositionsParam) ([]model.Position, error) {
	var positions []model.Position

	db := r.db.WithContext(ctx).Model(&model.Position{})
	if len(param.IDs) > 0 {
		db = db.Where("id IN ?", param.IDs)
	}
	if param.UserID != nil {
		db = db.Where("user_id = ?", *param.UserID)
	}
	if len(param.Symbols) > 0 {
		db = db.Where("symbol IN ?", param.Symbols)
	}
	if len(param.Statuses) > 0 {
		db = db.Where("status IN ?", param.Statuses)
	}
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}

	if err := db.Order("id DESC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepository) UpdateStatus(ctx context.Context, param dto.UpdatePositionStatusParam, opts ...utils.DBOption) (*model.Position, error) {
	if !param.From.CanTransitionTo(param.To) {
		return nil, fmt.Errorf("%s -> %s: %w", param.From, param.To, ErrInvalidTransition)
	}

	updates := statusUpdates(param)
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)

	res := db.Model(&model.Position{}).
		Where("id = ? AND status = ?", param.ID, param.From).
		Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrActivePositionExists
		}
		return nil, res.Error
	}

	var position model.Position
	if err := db.First(&position, param.ID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	if res.RowsAffected == 0 {
		return &position, fmt.Errorf("position %d is %s, not %s: %w", param.ID, position.Status, param.From, ErrInvalidTransition)
	}
	return &position, nil
}

func statusUpdates(param dto.UpdatePositionStatusParam) map[string]interface{} {
	updates := map[string]interface{}{
		"status":     param.To,
		"updated_at": time.Now(),
	}
	if param.EntryPrice != nil {
		updates["entry_price"] = *param.EntryPrice
	}
	if param.FillQty != nil {
		updates["fill_qty"] = *param.FillQty
	}
	if param.FillNotional != nil {
		updates["fill_notional"] = *param.FillNotional
	}
	if param.ExitPrice != nil {
		updates["exit_price"] = *param.ExitPrice
		updates["current_price"] = *param.ExitPrice
	}
	if param.ExitTime != nil {
		updates["exit_time"] = *param.ExitTime
	}
	if param.ExitReason != nil {
		updates["exit_reason"] = *param.ExitReason
	}
	if param.ProfitLoss != nil {
		updates["profit_loss"] = *param.ProfitLoss
	}
	if param.ProfitLossPercentage != nil {
		updates["profit_loss_percentage"] = *param.ProfitLossPercentage
	}
	return updates
}

func (r *positionRepository) UpdateSafetyOrders(ctx context.Context, id uint, orders dto.SafetyOrders) error {
	res := r.db.WithContext(ctx).Model(&model.Position{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"take_profit_order_id": orders.TakeProfitOrderID,
			"stop_loss_order_id":   orders.StopLossOrderID,
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *positionRepository) UpdateCurrentPrice(ctx context.Context, id uint, price float64) error {
	// only open positions track a live price
	return r.db.WithContext(ctx).Model(&model.Position{}).
		Where("id = ? AND status = ?", id, model.PositionOpen).
		Updates(map[string]interface{}{
			"current_price": price,
			"updated_at":    time.Now(),
		}).Error
}

func (r *positionRepository) OpenKeys(ctx context.Context) ([]dto.UserSymbol, error) {
	var keys []dto.UserSymbol
	err := r.db.WithContext(ctx).Model(&model.Position{}).
		Distinct("user_id", "symbol").
		Where("status = ?", model.PositionOpen).
		Order("user_id, symbol").
		Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}
