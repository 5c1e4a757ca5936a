package loanmock

import (
	"context"

	domain "chainlend-backend/internal/domain/loan"

	"github.com/ethereum/go-ethereum/common"
)

var (
	_ domain.RequestRepository = (*RequestRepo)(nil)
	_ domain.Repository        = (*Repo)(nil)
)

// RequestRepo is a function-backed mock that satisfies domain.RequestRepository.
// Lookups default to context.Canceled; writes default to a nil no-op.
type RequestRepo struct {
	CreateFn           func(ctx context.Context, r *domain.Request) error
	GetByIDFn          func(ctx context.Context, id uint64) (*domain.Request, error)
	GetByIDForUpdateFn func(ctx context.Context, id uint64) (*domain.Request, error)
	SaveFn             func(ctx context.Context, r *domain.Request) error
	ListPendingFn      func(ctx context.Context, offset, limit int) ([]uint64, error)
	CountPendingFn     func(ctx context.Context) (int64, error)
	ListByBorrowerFn   func(ctx context.Context, borrower common.Address) ([]uint64, error)
}

func (m *RequestRepo) Create(ctx context.Context, r *domain.Request) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	return nil
}
func (m *RequestRepo) GetByID(ctx context.Context, id uint64) (*domain.Request, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *RequestRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*domain.Request, error) {
	if m.GetByIDForUpdateFn != nil {
		return m.GetByIDForUpdateFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *RequestRepo) Save(ctx context.Context, r *domain.Request) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, r)
	}
	return nil
}
func (m *RequestRepo) ListPending(ctx context.Context, offset, limit int) ([]uint64, error) {
	if m.ListPendingFn != nil {
		return m.ListPendingFn(ctx, offset, limit)
	}
	return nil, context.Canceled
}
func (m *RequestRepo) CountPending(ctx context.Context) (int64, error) {
	if m.CountPendingFn != nil {
		return m.CountPendingFn(ctx)
	}
	return 0, context.Canceled
}
func (m *RequestRepo) ListByBorrower(ctx context.Context, borrower common.Address) ([]uint64, error) {
	if m.ListByBorrowerFn != nil {
		return m.ListByBorrowerFn(ctx, borrower)
	}
	return nil, context.Canceled
}

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn                  func(ctx context.Context, l *domain.Loan) error
	GetByRequestIDFn          func(ctx context.Context, requestID uint64) (*domain.Loan, error)
	GetByRequestIDForUpdateFn func(ctx context.Context, requestID uint64) (*domain.Loan, error)
	SaveFn                    func(ctx context.Context, l *domain.Loan) error
	ListByLenderFn            func(ctx context.Context, lender common.Address) ([]uint64, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}
func (m *Repo) GetByRequestID(ctx context.Context, requestID uint64) (*domain.Loan, error) {
	if m.GetByRequestIDFn != nil {
		return m.GetByRequestIDFn(ctx, requestID)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByRequestIDForUpdate(ctx context.Context, requestID uint64) (*domain.Loan, error) {
	if m.GetByRequestIDForUpdateFn != nil {
		return m.GetByRequestIDForUpdateFn(ctx, requestID)
	}
	return nil, context.Canceled
}
func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}
func (m *Repo) ListByLender(ctx context.Context, lender common.Address) ([]uint64, error) {
	if m.ListByLenderFn != nil {
		return m.ListByLenderFn(ctx, lender)
	}
	return nil, context.Canceled
}
