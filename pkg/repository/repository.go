// Package repository provides a small generic gorm-backed store used by
// feature services for plain lookups. Anything with locking or aggregation
// semantics talks to gorm directly.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// QueryOption mutates the statement built for Find/FindOne/Count.
type QueryOption func(*gorm.DB) *gorm.DB

func WithOrder(order string) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Order(order) }
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Limit(limit) }
}

func WithOffset(offset int) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Offset(offset) }
}

// WithCondition adds an extra WHERE clause beyond the struct filter.
func WithCondition(query string, args ...any) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) }
}

type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, filter *T, opts ...QueryOption) ([]*T, error)
	FindOne(ctx context.Context, filter *T, opts ...QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID any, resource any) error
	Count(ctx context.Context, filter *T, opts ...QueryOption) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (s *store[T]) Find(ctx context.Context, filter *T, opts ...QueryOption) ([]*T, error) {
	var result []*T
	err := s.buildQuery(ctx, filter, opts...).Find(&result).Error
	return result, err
}

func (s *store[T]) FindOne(ctx context.Context, filter *T, opts ...QueryOption) (*T, error) {
	var result T
	err := s.buildQuery(ctx, filter, opts...).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (s *store[T]) Create(ctx context.Context, resource *T) error {
	return s.db.WithContext(ctx).Create(resource).Error
}

func (s *store[T]) Update(ctx context.Context, resourceID any, resource any) error {
	return s.db.WithContext(ctx).Model(new(T)).Where("id = ?", resourceID).Updates(resource).Error
}

func (s *store[T]) Count(ctx context.Context, filter *T, opts ...QueryOption) (int64, error) {
	var count int64
	err := s.buildQuery(ctx, filter, opts...).Model(new(T)).Count(&count).Error
	return count, err
}

func (s *store[T]) buildQuery(ctx context.Context, filter *T, opts ...QueryOption) *gorm.DB {
	db := s.db.WithContext(ctx).Where(filter)
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}
