package shared

import "context"

// UnitOfWork runs a function inside a single storage transaction.
// Every write performed through a repository within fn observes and joins
// the same transaction; if fn returns an error, all of it rolls back.
//
// Balance mutations on an invoice and the payment row that caused them must
// always share one unit of work.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
