package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrActivePositionExists means (user, symbol) already has a pending or open position.
	ErrActivePositionExists = errors.New("repository: active position already exists")
	// ErrInvalidTransition means the requested status change is not allowed
	// from the position's current status.
	ErrInvalidTransition = errors.New("repository: invalid position status transition")
	ErrNotFound          = errors.New("repository: record not found")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
