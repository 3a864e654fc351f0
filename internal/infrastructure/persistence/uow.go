package persistence

import (
	"context"

	"github.com/finbooks/backend/internal/domain/shared"
	"gorm.io/gorm"
)

type txKey struct{}

// GormUnitOfWork implements shared.UnitOfWork over a GORM connection. The
// transaction handle travels in the context so repositories join the
// transaction transparently.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a unit of work bound to the given connection
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// WithinTransaction runs fn inside a database transaction. Nested calls
// join the ambient transaction instead of opening a new one.
func (u *GormUnitOfWork) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// txFromContext returns the ambient transaction, or nil if none is active
func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// dbFromContext returns the ambient transaction if one is active, otherwise
// the base connection. Every repository resolves its handle through this.
func dbFromContext(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return base.WithContext(ctx)
}

// Ensure GormUnitOfWork implements UnitOfWork
var _ shared.UnitOfWork = (*GormUnitOfWork)(nil)
