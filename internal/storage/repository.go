package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"gorm.io/gorm"
)

// Repository is the gorm implementation of domain.Repository for one table.
type Repository[T any] struct {
	db       *gorm.DB
	entity   string
	preloads []string
}

var _ domain.Repository[domain.Deal] = (*Repository[domain.Deal])(nil)

func NewRepository[T any](db *gorm.DB, entity string, preloads ...string) *Repository[T] {
	return &Repository[T]{db: db, entity: entity, preloads: preloads}
}

func (r *Repository[T]) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	return q
}

func (r *Repository[T]) Get(ctx context.Context, id uint) (*T, error) {
	var out T
	err := r.query(ctx).First(&out, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound(r.entity, id)
		}
		return nil, TranslateError(err)
	}
	return &out, nil
}

func (r *Repository[T]) First(ctx context.Context, conds domain.Conds) (*T, error) {
	var out T
	err := r.query(ctx).Where(map[string]any(conds)).First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound(r.entity, fmt.Sprint(map[string]any(conds)))
		}
		return nil, TranslateError(err)
	}
	return &out, nil
}

func (r *Repository[T]) FirstWhere(ctx context.Context, query string, args ...any) (*T, error) {
	var out T
	err := r.query(ctx).Where(query, args...).First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound(r.entity, fmt.Sprint(args...))
		}
		return nil, TranslateError(err)
	}
	return &out, nil
}

func (r *Repository[T]) List(ctx context.Context, conds domain.Conds) ([]T, error) {
	var out []T
	err := r.query(ctx).Where(map[string]any(conds)).Order("id").Find(&out).Error
	if err != nil {
		return nil, TranslateError(err)
	}
	return out, nil
}

func (r *Repository[T]) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(new(T)).Where(query, args...).Count(&n).Error
	if err != nil {
		return false, TranslateError(err)
	}
	return n > 0, nil
}

func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return TranslateError(r.db.WithContext(ctx).Create(entity).Error)
}

// Save writes every column of an existing row.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	return TranslateError(r.db.WithContext(ctx).Save(entity).Error)
}

func (r *Repository[T]) Update(ctx context.Context, id uint, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return TranslateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NotFound(r.entity, id)
	}
	return nil
}
