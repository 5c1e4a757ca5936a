package uowmock

import (
	"context"
	"errors"

	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn       func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinLedgerTxFn func(ctx context.Context, fn func(r uow.Repos, st *ledger.State) error) error
}

// Convenience fluent setters
func New() *UoW { return &UoW{} }
func (m *UoW) WithWithinTx(fn func(context.Context, func(uow.Repos) error) error) *UoW {
	m.WithinTxFn = fn
	return m
}
func (m *UoW) WithWithinLedgerTx(fn func(context.Context, func(uow.Repos, *ledger.State) error) error) *UoW {
	m.WithinLedgerTxFn = fn
	return m
}
func (m *UoW) Reset() { *m = UoW{} }

// Static runs every transaction body against fixed repos and state, with
// no rollback. Good enough for error-propagation tests.
func Static(r uow.Repos, st *ledger.State) *UoW {
	return New().
		WithWithinTx(func(_ context.Context, fn func(uow.Repos) error) error { return fn(r) }).
		WithWithinLedgerTx(func(_ context.Context, fn func(uow.Repos, *ledger.State) error) error { return fn(r, st) })
}

// Methods implementing UnitOfWork
func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinLedgerTx(ctx context.Context, fn func(r uow.Repos, st *ledger.State) error) error {
	if m.WithinLedgerTxFn != nil {
		return m.WithinLedgerTxFn(ctx, fn)
	}
	return errUnimplemented
}
