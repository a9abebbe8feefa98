package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind domain.Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, domain.KindNotFound},
		{"gorm duplicate", gorm.ErrDuplicatedKey, domain.KindConflict},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, domain.KindNotFound},
		{"pg unique", &pgconn.PgError{Code: "23505", ConstraintName: "ux_deal_lead_active"}, domain.KindConflict},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, domain.KindConflict},
		{"pg deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), domain.KindConflict},
		{"pg foreign key", &pgconn.PgError{Code: "23503"}, domain.KindNotFound},
		{"pg other", &pgconn.PgError{Code: "42P01"}, domain.KindInternal},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, domain.KindConflict},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, domain.KindConflict},
		{"sqlite foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, domain.KindNotFound},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, domain.KindConflict},
		{"cancelled", context.Canceled, domain.KindInternal},
		{"plain", errors.New("boom"), domain.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err)
			assert.Equal(t, tt.kind, domain.KindOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestTranslateErrorPassesDomainErrorsThrough(t *testing.T) {
	in := domain.Ineligible("nope")
	assert.Same(t, in, TranslateError(in))
	assert.NoError(t, TranslateError(nil))
}
