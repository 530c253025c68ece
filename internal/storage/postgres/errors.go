package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isUniqueViolation(err error) bool {
	return hasPgCode(err, pgUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasPgCode(err, pgForeignKeyViolation)
}

func isCheckViolation(err error) bool {
	return hasPgCode(err, pgCheckViolation)
}

// notFound переводит sql.ErrNoRows в доменную ошибку.
func notFound(err error, target error, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", target, id)
	}
	return err
}
