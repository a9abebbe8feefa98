package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store hands out transactions over a gorm connection pool.
type Store struct {
	db *gorm.DB
}

var _ domain.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the pool for migrations and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, TranslateError(tx.Error)
	}
	return newTx(tx), nil
}

// Tx wraps one gorm transaction and the repositories bound to it.
type Tx struct {
	db *gorm.DB

	roles            *Repository[domain.Role]
	users            *Repository[domain.User]
	deals            *Repository[domain.Deal]
	stages           *Repository[domain.Stage]
	therapeuticAreas *Repository[domain.TherapeuticArea]
	lineFunctions    *Repository[domain.LineFunction]
	leadMappings     *Repository[domain.DealLeadMapping]
	resourceMappings *Repository[domain.ResourceDealMapping]
	resourceInfo     *Repository[domain.DealWiseResourceInfo]
	userAreas        *Repository[domain.UserTherapeuticArea]
}

func newTx(db *gorm.DB) *Tx {
	return &Tx{
		db:               db,
		roles:            NewRepository[domain.Role](db, "Role"),
		users:            NewRepository[domain.User](db, "User", "Role"),
		deals:            NewRepository[domain.Deal](db, "Deal"),
		stages:           NewRepository[domain.Stage](db, "Stage"),
		therapeuticAreas: NewRepository[domain.TherapeuticArea](db, "TherapeuticArea"),
		lineFunctions:    NewRepository[domain.LineFunction](db, "LineFunction"),
		leadMappings:     NewRepository[domain.DealLeadMapping](db, "DealLeadMapping"),
		resourceMappings: NewRepository[domain.ResourceDealMapping](db, "ResourceDealMapping"),
		resourceInfo:     NewRepository[domain.DealWiseResourceInfo](db, "DealWiseResourceInfo"),
		userAreas:        NewRepository[domain.UserTherapeuticArea](db, "UserTherapeuticArea"),
	}
}

func (t *Tx) Roles() domain.Repository[domain.Role] { return t.roles }
func (t *Tx) Users() domain.Repository[domain.User] { return t.users }
func (t *Tx) Deals() domain.Repository[domain.Deal] { return t.deals }
func (t *Tx) Stages() domain.Repository[domain.Stage] { return t.stages }

func (t *Tx) TherapeuticAreas() domain.Repository[domain.TherapeuticArea] {
	return t.therapeuticAreas
}

func (t *Tx) LineFunctions() domain.Repository[domain.LineFunction] {
	return t.lineFunctions
}

// --- Junction tables ---

func (t *Tx) LeadMappings() domain.Repository[domain.DealLeadMapping] {
	return t.leadMappings
}

func (t *Tx) ResourceMappings() domain.Repository[domain.ResourceDealMapping] {
	return t.resourceMappings
}

func (t *Tx) ResourceInfo() domain.Repository[domain.DealWiseResourceInfo] {
	return t.resourceInfo
}

func (t *Tx) UserAreas() domain.Repository[domain.UserTherapeuticArea] {
	return t.userAreas
}

// LockDeal issues SELECT ... FOR UPDATE on Postgres. SQLite runs with a
// single connection, so transactions are already serialized there.
func (t *Tx) LockDeal(ctx context.Context, dealID uint) error {
	if t.db.Dialector.Name() != "postgres" {
		return nil
	}
	var deal domain.Deal
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&deal, dealID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFound("Deal", dealID)
		}
		return TranslateError(err)
	}
	return nil
}

func (t *Tx) Commit() error {
	return TranslateError(t.db.Commit().Error)
}

// Rollback is a no-op on a transaction that already finished, including one
// the driver aborted because its context was cancelled.
func (t *Tx) Rollback() error {
	err := t.db.Rollback().Error
	if errors.Is(err, gorm.ErrInvalidTransaction) || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
