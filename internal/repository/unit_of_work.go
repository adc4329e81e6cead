package repository

import (
	"context"
	"fmt"
	"golang-autotrader/pkg/utils"

	"gorm.io/gorm"
)

// UnitOfWork runs fn inside one transaction. Repositories join it through
// the DBOption passed to fn.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(opts ...utils.DBOption) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Run(ctx context.Context, fn func(opts ...utils.DBOption) error) (err error) {
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin failed: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			err = fmt.Errorf("commit failed: %w", commitErr)
		}
	}()

	err = fn(utils.WithTx(tx))
	return
}

// noopUnitOfWork runs fn directly for the in-memory stores.
type noopUnitOfWork struct{}

func NewNoopUnitOfWork() UnitOfWork {
	return noopUnitOfWork{}
}

func (noopUnitOfWork) Run(ctx context.Context, fn func(opts ...utils.DBOption) error) error {
	return fn()
}
