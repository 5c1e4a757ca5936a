package loan

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotFound = errors.New("loan: record not found")

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uint64) (*Request, error)
	// row lock; callers must be inside a tx
	GetByIDForUpdate(ctx context.Context, id uint64) (*Request, error)
	Save(ctx context.Context, r *Request) error

	// ListPending returns pending ids in ascending order; limit < 0 means no limit.
	ListPending(ctx context.Context, offset, limit int) ([]uint64, error)
	CountPending(ctx context.Context) (int64, error)
	ListByBorrower(ctx context.Context, borrower common.Address) ([]uint64, error)
}

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByRequestID(ctx context.Context, requestID uint64) (*Loan, error)
	GetByRequestIDForUpdate(ctx context.Context, requestID uint64) (*Loan, error)
	Save(ctx context.Context, l *Loan) error
	ListByLender(ctx context.Context, lender common.Address) ([]uint64, error)
}
