package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/loan"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/risk"

	"github.com/ethereum/go-ethereum/common"
)

func (s *Service) validateRequest(in CreateRequestInput) error {
	if in.Amount.IsZero() {
		return ledgererr.ZeroAmount("loan amount")
	}
	if in.Amount.Gt(s.calc.MaxLoanAmount) {
		return ledgererr.InvalidAmount(in.Amount, ledgererr.ReasonExceedsMaxLoan)
	}
	if in.InterestRate < risk.MinInterestRate || in.InterestRate > risk.MaxInterestRate {
		return ledgererr.InvalidParameter(ledgererr.ReasonInterestRate)
	}
	if in.Duration < risk.MinDuration || in.Duration > risk.MaxDuration {
		return ledgererr.InvalidParameter(ledgererr.ReasonDuration)
	}
	if in.Collateral.IsZero() {
		return ledgererr.ZeroAmount("collateral")
	}
	return nil
}

// CreateLoanRequest opens a pending request backed by in.Collateral, which
// moves into escrow in the same transaction.
func (s *Service) CreateLoanRequest(ctx context.Context, in CreateRequestInput) (*RequestDTO, error) {
	if err := s.validateRequest(in); err != nil {
		s.observe("create_request", err)
		return nil, err
	}
	pair, fetchErr := s.prefetch(ctx)

	var out *RequestDTO
	err := s.mutate(ctx, "create_request", func(t *txn) error {
		if fetchErr != nil {
			return fetchErr
		}
		prices, err := pair.Resolve(t.now)
		if err != nil {
			return err
		}
		required, err := s.calc.RequiredCollateral(in.Amount, prices)
		if err != nil {
			return err
		}
		if in.Collateral.Lt(required) {
			return ledgererr.InsufficientCollateral(required)
		}

		id := t.st.NextRequestID
		if err := t.move(ctx, asset.ETH, in.Borrower, s.cfg.Ledger, in.Collateral, fmt.Sprintf("collateral for request %d", id)); err != nil {
			return err
		}
		req := &loan.Request{
			ID:                 id,
			Borrower:           in.Borrower,
			AmountRequested:    in.Amount,
			RequiredCollateral: required,
			ActualCollateral:   in.Collateral,
			Duration:           in.Duration,
			InterestRate:       in.InterestRate,
			Status:             loan.RequestPending,
			CreatedAt:          t.now,
		}
		if err := t.Requests.Create(ctx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		t.st.NextRequestID++
		t.st.TotalActiveRequests++

		if err := t.emit(ctx, ledger.EventLoanRequestCreated, id, in.Borrower, map[string]any{
			"amount":        in.Amount,
			"interest_rate": in.InterestRate,
			"duration":      in.Duration,
		}); err != nil {
			return err
		}
		if err := t.emit(ctx, ledger.EventCollateralDeposited, id, in.Borrower, map[string]any{
			"amount": in.Collateral,
		}); err != nil {
			return err
		}
		if err := s.accrue(ctx, t, id, in.Borrower, s.cfg.CreateReward); err != nil {
			return err
		}
		out = toRequestDTO(req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadRequest applies the id bounds check, then locks the row.
func loadRequest(ctx context.Context, t *txn, id uint64) (*loan.Request, error) {
	if !t.st.InRange(id) {
		return nil, ledgererr.InvalidRequest(id, ledgererr.ReasonInvalidRange)
	}
	req, err := t.Requests.GetByIDForUpdate(ctx, id)
	if errors.Is(err, loan.ErrNotFound) {
		return nil, ledgererr.InvalidRequest(id, ledgererr.ReasonRequestNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load request %d: %w", id, err)
	}
	return req, nil
}

// CancelLoanRequest withdraws a pending request and refunds its collateral.
func (s *Service) CancelLoanRequest(ctx context.Context, caller common.Address, id uint64) (*RequestDTO, error) {
	var out *RequestDTO
	err := s.mutate(ctx, "cancel_request", func(t *txn) error {
		req, err := loadRequest(ctx, t, id)
		if err != nil {
			return err
		}
		if req.Borrower != caller {
			return ledgererr.Unauthorized(id, ledgererr.ReasonNotBorrower)
		}
		if req.Status != loan.RequestPending {
			return ledgererr.InvalidRequestStatus(id, ledgererr.ReasonRequestNotPending)
		}

		refund := req.ActualCollateral
		if err := t.move(ctx, asset.ETH, s.cfg.Ledger, req.Borrower, refund, fmt.Sprintf("refund request %d", id)); err != nil {
			return err
		}
		req.Status = loan.RequestCancelled
		req.ActualCollateral = money.Zero()
		if err := t.Requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save request %d: %w", id, err)
		}
		t.st.TotalActiveRequests--

		if err := t.emit(ctx, ledger.EventLoanRequestCancelled, id, caller, map[string]any{
			"refunded": refund,
		}); err != nil {
			return err
		}
		out = toRequestDTO(req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FundLoan pays the principal from lender to borrower and opens the loan.
// Interest is fixed here, at funding time.
func (s *Service) FundLoan(ctx context.Context, lender common.Address, id uint64) (*LoanDTO, error) {
	var out *LoanDTO
	err := s.mutate(ctx, "fund_loan", func(t *txn) error {
		req, err := loadRequest(ctx, t, id)
		if err != nil {
			return err
		}
		if req.Borrower == lender {
			return ledgererr.InvalidRequest(id, ledgererr.ReasonSelfFunding)
		}
		if req.Status != loan.RequestPending {
			return ledgererr.InvalidRequestStatus(id, ledgererr.ReasonRequestNotPending)
		}

		if err := t.move(ctx, asset.USDC, lender, req.Borrower, req.AmountRequested, fmt.Sprintf("principal loan %d", id)); err != nil {
			return err
		}
		interest, err := risk.Interest(req.AmountRequested, req.InterestRate, req.Duration)
		if err != nil {
			return err
		}
		total, err := req.AmountRequested.Add(interest)
		if err != nil {
			return ledgererr.InvalidAmount(req.AmountRequested, err.Error())
		}
		volume, err := t.st.TotalVolume.Add(req.AmountRequested)
		if err != nil {
			return ledgererr.InvalidAmount(req.AmountRequested, err.Error())
		}

		l := &loan.Loan{
			RequestID: id,
			Borrower:  req.Borrower,
			Lender:    lender,
			FundedAt:  t.now,
			DueDate:   t.now.Add(time.Duration(req.Duration) * time.Second),
			Principal: req.AmountRequested,
			Interest:  interest,
			TotalDue:  total,
			Status:    loan.StatusActive,
		}
		if err := t.Loans.Create(ctx, l); err != nil {
			return fmt.Errorf("create loan %d: %w", id, err)
		}
		req.Status = loan.RequestFunded
		if err := t.Requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save request %d: %w", id, err)
		}
		t.st.TotalActiveRequests--
		t.st.TotalActiveLoans++
		t.st.TotalVolume = volume

		if err := t.emit(ctx, ledger.EventLoanFunded, id, lender, map[string]any{
			"borrower":  req.Borrower,
			"principal": l.Principal,
			"interest":  l.Interest,
			"due_date":  l.DueDate.Unix(),
		}); err != nil {
			return err
		}
		if err := s.accrue(ctx, t, id, lender, s.cfg.FundReward); err != nil {
			return err
		}
		out = toLoanDTO(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
