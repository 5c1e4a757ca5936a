package mysql

import (
	"context"
	"errors"

	loanDomain "chainlend-backend/internal/domain/loan"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var forUpdate = clause.Locking{Strength: "UPDATE"}

func notFound(err, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}

type RequestRepository struct{ db *gorm.DB }

func NewRequestRepository(db *gorm.DB) *RequestRepository { return &RequestRepository{db: db} }

func (r *RequestRepository) Create(ctx context.Context, req *loanDomain.Request) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) Save(ctx context.Context, req *loanDomain.Request) error {
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *RequestRepository) GetByID(ctx context.Context, id uint64) (*loanDomain.Request, error) {
	var out loanDomain.Request
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, notFound(err, loanDomain.ErrNotFound)
	}
	return &out, nil
}

func (r *RequestRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*loanDomain.Request, error) {
	var out loanDomain.Request
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, notFound(err, loanDomain.ErrNotFound)
	}
	return &out, nil
}

func (r *RequestRepository) ListPending(ctx context.Context, offset, limit int) ([]uint64, error) {
	var ids []uint64
	q := r.db.WithContext(ctx).Model(&loanDomain.Request{}).
		Where("status = ?", loanDomain.RequestPending).
		Order("id ASC").
		Offset(offset)
	if limit >= 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}

func (r *RequestRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&loanDomain.Request{}).
		Where("status = ?", loanDomain.RequestPending).
		Count(&n).Error
	return n, err
}

func (r *RequestRepository) ListByBorrower(ctx context.Context, borrower common.Address) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&loanDomain.Request{}).
		Where("borrower = ?", borrower).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *LoanRepository) GetByRequestID(ctx context.Context, requestID uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&out).Error; err != nil {
		return nil, notFound(err, loanDomain.ErrNotFound)
	}
	return &out, nil
}

func (r *LoanRepository) GetByRequestIDForUpdate(ctx context.Context, requestID uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Where("request_id = ?", requestID).First(&out).Error; err != nil {
		return nil, notFound(err, loanDomain.ErrNotFound)
	}
	return &out, nil
}

func (r *LoanRepository) ListByLender(ctx context.Context, lender common.Address) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("lender = ?", lender).
		Order("request_id ASC").
		Pluck("request_id", &ids).Error
	return ids, err
}
