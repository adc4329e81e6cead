package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang-autotrader/internal/dto"
	"golang-autotrader/internal/model"
	"golang-autotrader/pkg/utils"
)

// memoryPositionRepository keeps positions in process. The mutex makes
// Create's check and insert one step.
type memoryPositionRepository struct {
	mu        sync.RWMutex
	nextID    uint
	positions map[uint]*model.Position
}

func NewMemoryPositionRepository() PositionRepository {
	return &memoryPositionRepository{positions: make(map[uint]*model.Position)}
}

func (r *memoryPositionRepository) Create(ctx context.Context, position *model.Position, opts ...utils.DBOption) error {
	if !position.Status.IsActive() {
		return fmt.Errorf("create position with status %s: %w", position.Status, ErrInvalidTransition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.positions {
		if p.UserID == position.UserID && p.Symbol == position.Symbol && p.Status.IsActive() {
			return ErrActivePositionExists
		}
	}

	r.nextID++
	now := time.Now()
	position.ID = r.nextID
	position.CreatedAt = now
	position.UpdatedAt = now
	stored := *position
	r.positions[stored.ID] = &stored
	return nil
}

func (r *memoryPositionRepository) FindActive(ctx context.Context, userID uint, symbol string) (*model.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.positions {
		if p.UserID == userID && p.Symbol == symbol && p.Status.IsActive() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryPositionRepository) FindAllOpen(ctx context.Context, symbol string, userID uint) ([]model.Position, error) {
	return r.filter(func(p *model.Position) bool {
		return p.UserID == userID && p.Symbol == symbol && p.Status == model.PositionOpen
	}, false), nil
}

func (r *memoryPositionRepository) FindByID(ctx context.Context, id uint) (*model.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPositionRepository) Get(ctx context.Context, param dto.GetPositionsParam) ([]model.Position, error) {
	out := r.filter(func(p *model.Position) bool {
		if len(param.IDs) > 0 && !containsID(param.IDs, p.ID) {
			return false
		}
		if param.UserID != nil && p.UserID != *param.UserID {
			return false
		}
		if len(param.Symbols) > 0 && !utils.ContainsString(param.Symbols, p.Symbol) {
			return false
		}
		if len(param.Statuses) > 0 && !containsStatus(param.Statuses, p.Status) {
			return false
		}
		return true
	}, true)

	if param.Limit != nil && *param.Limit < len(out) {
		out = out[:*param.Limit]
	}
	return out, nil
}

func (r *memoryPositionRepository) UpdateStatus(ctx context.Context, param dto.UpdatePositionStatusParam, opts ...utils.DBOption) (*model.Position, error) {
	if !param.From.CanTransitionTo(param.To) {
		return nil, fmt.Errorf("%s -> %s: %w", param.From, param.To, ErrInvalidTransition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[param.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status != param.From {
		cp := *p
		return &cp, fmt.Errorf("position %d is %s, not %s: %w", param.ID, p.Status, param.From, ErrInvalidTransition)
	}

	p.Status = param.To
	p.UpdatedAt = time.Now()
	if param.EntryPrice != nil {
		p.EntryPrice = *param.EntryPrice
	}
	if param.FillQty != nil {
		p.FillQty = *param.FillQty
	}
	if param.FillNotional != nil {
		p.FillNotional = *param.FillNotional
	}
	if param.ExitPrice != nil {
		p.ExitPrice = utils.ToPointer(*param.ExitPrice)
		p.CurrentPrice = utils.ToPointer(*param.ExitPrice)
	}
	if param.ExitTime != nil {
		p.ExitTime = utils.ToPointer(*param.ExitTime)
	}
	if param.ExitReason != nil {
		p.ExitReason = utils.ToPointer(*param.ExitReason)
	}
	if param.ProfitLoss != nil {
		p.ProfitLoss = utils.ToPointer(*param.ProfitLoss)
	}
	if param.ProfitLossPercentage != nil {
		p.ProfitLossPercentage = utils.ToPointer(*param.ProfitLossPercentage)
	}

	cp := *p
	return &cp, nil
}

func (r *memoryPositionRepository) UpdateSafetyOrders(ctx context.Context, id uint, orders dto.SafetyOrders) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[id]
	if !ok {
		return ErrNotFound
	}
	p.TakeProfitOrderID = utils.ToPointer(orders.TakeProfitOrderID)
	p.StopLossOrderID = utils.ToPointer(orders.StopLossOrderID)
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memoryPositionRepository) UpdateCurrentPrice(ctx context.Context, id uint, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.positions[id]; ok && p.Status == model.PositionOpen {
		p.CurrentPrice = utils.ToPointer(price)
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memoryPositionRepository) OpenKeys(ctx context.Context) ([]dto.UserSymbol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var keys []dto.UserSymbol
	for _, p := range r.positions {
		if p.Status != model.PositionOpen {
			continue
		}
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		seen[p.Key()] = struct{}{}
		keys = append(keys, dto.UserSymbol{UserID: p.UserID, Symbol: p.Symbol})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].UserID != keys[j].UserID {
			return keys[i].UserID < keys[j].UserID
		}
		return keys[i].Symbol < keys[j].Symbol
	})
	return keys, nil
}

func (r *memoryPositionRepository) filter(keep func(p *model.Position) bool, newestFirst bool) []model.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Position
	for _, p := range r.positions {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []model.PositionStatus, status model.PositionStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type memoryTradingSignalRepository struct {
	mu      sync.RWMutex
	nextID  uint
	signals []model.TradingSignal
}

func NewMemoryTradingSignalRepository() TradingSignalRepository {
	return &memoryTradingSignalRepository{}
}

func (r *memoryTradingSignalRepository) Create(ctx context.Context, signal *model.TradingSignal, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	signal.ID = r.nextID
	signal.CreatedAt = time.Now()
	r.signals = append(r.signals, *signal)
	return nil
}

func (r *memoryTradingSignalRepository) FindLatest(ctx context.Context, userID uint, symbol string) (*model.TradingSignal, error) {
	list, _ := r.List(ctx, userID, symbol, 1)
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (r *memoryTradingSignalRepository) List(ctx context.Context, userID uint, symbol string, limit int) ([]model.TradingSignal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.TradingSignal
	for i := len(r.signals) - 1; i >= 0; i-- {
		s := r.signals[i]
		if s.UserID == userID && s.Symbol == symbol {
			out = append(out, s)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memoryBotStateRepository struct {
	mu     sync.RWMutex
	states map[string]*model.BotState
}

func NewMemoryBotStateRepository() BotStateRepository {
	return &memoryBotStateRepository{states: make(map[string]*model.BotState)}
}

func (r *memoryBotStateRepository) Get(ctx context.Context, symbol string) (*model.BotState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.states[symbol]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memoryBotStateRepository) List(ctx context.Context) ([]model.BotState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.BotState, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *memoryBotStateRepository) SetRunning(ctx context.Context, symbol string, running bool) (*model.BotState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[symbol]
	if !ok {
		s = &model.BotState{Symbol: symbol}
		r.states[symbol] = s
	}
	s.Running = running
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (r *memoryBotStateRepository) RecordRun(ctx context.Context, symbol string, runAt time.Time, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.states[symbol]; ok {
		s.LastRunAt = utils.ToPointer(runAt)
		s.ErrorMessage = errorMessage
		s.UpdatedAt = time.Now()
	}
	return nil
}
