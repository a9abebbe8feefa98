package storage

import (
	"context"
	"errors"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the engine reacts to
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TranslateError maps driver and gorm errors onto the engine taxonomy.
// Errors already in the taxonomy pass through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &domain.Error{Kind: domain.KindInternal, Message: "operation cancelled", Detail: err.Error(), Err: err}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &domain.Error{Kind: domain.KindNotFound, Message: "record not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &domain.Error{Kind: domain.KindConflict, Message: "uniqueness constraint violated", Detail: err.Error(), Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &domain.Error{Kind: domain.KindNotFound, Message: "referenced entity not found", Detail: err.Error(), Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &domain.Error{Kind: domain.KindConflict, Message: "uniqueness constraint violated", Detail: pgErr.ConstraintName, Err: err}
		case pgSerializationFailure, pgDeadlockDetected:
			return &domain.Error{Kind: domain.KindConflict, Message: "concurrent update", Detail: pgErr.Message, Err: err}
		case pgForeignKeyViolation:
			return &domain.Error{Kind: domain.KindNotFound, Message: "referenced entity not found", Detail: pgErr.ConstraintName, Err: err}
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique, liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return &domain.Error{Kind: domain.KindConflict, Message: "uniqueness constraint violated", Detail: liteErr.Error(), Err: err}
		case liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return &domain.Error{Kind: domain.KindNotFound, Message: "referenced entity not found", Detail: liteErr.Error(), Err: err}
		case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
			return &domain.Error{Kind: domain.KindConflict, Message: "concurrent update", Detail: liteErr.Error(), Err: err}
		}
	}

	return domain.Internal(err)
}
