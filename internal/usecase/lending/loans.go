package lending

import (
	"context"
	"errors"
	"fmt"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/loan"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/risk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func loadLoan(ctx context.Context, t *txn, id uint64) (*loan.Loan, error) {
	if !t.st.InRange(id) {
		return nil, ledgererr.InvalidLoan(id, ledgererr.ReasonInvalidRange)
	}
	l, err := t.Loans.GetByRequestIDForUpdate(ctx, id)
	if errors.Is(err, loan.ErrNotFound) {
		return nil, ledgererr.InvalidLoan(id, ledgererr.ReasonLoanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load loan %d: %w", id, err)
	}
	return l, nil
}

// loadActiveLoan loads the loan and its request for a borrower-only
// operation on an active loan.
func loadActiveLoan(ctx context.Context, t *txn, caller common.Address, id uint64) (*loan.Loan, *loan.Request, error) {
	l, err := loadLoan(ctx, t, id)
	if err != nil {
		return nil, nil, err
	}
	if l.Borrower != caller {
		return nil, nil, ledgererr.Unauthorized(id, ledgererr.ReasonNotBorrower)
	}
	if l.Status != loan.StatusActive {
		return nil, nil, ledgererr.InvalidLoan(id, ledgererr.ReasonLoanNotActive)
	}
	req, err := t.Requests.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load request %d: %w", id, err)
	}
	return l, req, nil
}

// RepayLoan settles the whole amount due. The protocol fee comes out of
// the interest only; collateral stays in escrow until withdrawn.
func (s *Service) RepayLoan(ctx context.Context, caller common.Address, id uint64) (*Repayment, error) {
	var out *Repayment
	err := s.mutate(ctx, "repay_loan", func(t *txn) error {
		l, err := loadLoan(ctx, t, id)
		if err != nil {
			return err
		}
		if l.Borrower != caller {
			return ledgererr.Unauthorized(id, ledgererr.ReasonNotBorrower)
		}
		if l.Status != loan.StatusActive {
			return ledgererr.InvalidLoan(id, ledgererr.ReasonLoanNotActive)
		}

		fee := risk.ProtocolFeeOf(l.Interest)
		lenderShare, err := l.TotalDue.Sub(fee)
		if err != nil {
			return ledgererr.InvalidAmount(fee, err.Error())
		}
		memo := fmt.Sprintf("repay loan %d", id)
		if err := t.move(ctx, asset.USDC, caller, l.Lender, lenderShare, memo); err != nil {
			return err
		}
		if err := t.move(ctx, asset.USDC, caller, t.st.Treasury, fee, memo); err != nil {
			return err
		}
		l.Status = loan.StatusRepaid
		if err := t.Loans.Save(ctx, l); err != nil {
			return fmt.Errorf("save loan %d: %w", id, err)
		}
		t.st.TotalActiveLoans--

		if err := t.emit(ctx, ledger.EventLoanRepaid, id, caller, map[string]any{
			"total_paid":   l.TotalDue,
			"lender_share": lenderShare,
			"protocol_fee": fee,
		}); err != nil {
			return err
		}
		out = &Repayment{RequestID: id, TotalPaid: l.TotalDue, LenderShare: lenderShare, ProtocolFee: fee}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WithdrawCollateral releases the full deposit of a repaid loan.
func (s *Service) WithdrawCollateral(ctx context.Context, caller common.Address, id uint64) (money.Amount, error) {
	var out money.Amount
	err := s.mutate(ctx, "withdraw_collateral", func(t *txn) error {
		req, err := loadRequest(ctx, t, id)
		if err != nil {
			return err
		}
		if req.Borrower != caller {
			return ledgererr.Unauthorized(id, ledgererr.ReasonNotBorrower)
		}
		l, err := t.Loans.GetByRequestIDForUpdate(ctx, id)
		if errors.Is(err, loan.ErrNotFound) {
			return ledgererr.InvalidLoan(id, ledgererr.ReasonLoanNotFound)
		}
		if err != nil {
			return fmt.Errorf("load loan %d: %w", id, err)
		}
		if l.Status != loan.StatusRepaid {
			return ledgererr.InvalidLoan(id, ledgererr.ReasonLoanNotRepaid)
		}
		if req.ActualCollateral.IsZero() {
			return ledgererr.InvalidRequest(id, ledgererr.ReasonNoCollateral)
		}

		out = req.ActualCollateral
		if err := t.move(ctx, asset.ETH, s.cfg.Ledger, caller, out, fmt.Sprintf("release request %d", id)); err != nil {
			return err
		}
		req.ActualCollateral = money.Zero()
		if err := t.Requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save request %d: %w", id, err)
		}
		return t.emit(ctx, ledger.EventCollateralWithdrawn, id, caller, map[string]any{"amount": out})
	})
	if err != nil {
		return money.Amount{}, err
	}
	return out, nil
}

// AddCollateral tops up an active loan's deposit.
func (s *Service) AddCollateral(ctx context.Context, caller common.Address, id uint64, amount money.Amount) (*RequestDTO, error) {
	if amount.IsZero() {
		err := ledgererr.ZeroAmount("collateral")
		s.observe("add_collateral", err)
		return nil, err
	}
	var out *RequestDTO
	err := s.mutate(ctx, "add_collateral", func(t *txn) error {
		_, req, err := loadActiveLoan(ctx, t, caller, id)
		if err != nil {
			return err
		}
		total, err := req.ActualCollateral.Add(amount)
		if err != nil {
			return ledgererr.InvalidAmount(amount, err.Error())
		}
		if err := t.move(ctx, asset.ETH, caller, s.cfg.Ledger, amount, fmt.Sprintf("top up loan %d", id)); err != nil {
			return err
		}
		req.ActualCollateral = total
		if err := t.Requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save request %d: %w", id, err)
		}
		if err := t.emit(ctx, ledger.EventCollateralAdded, id, caller, map[string]any{
			"amount": amount,
			"total":  total,
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

// WithdrawExcessCollateral releases collateral above both the frozen
// requirement and 150% of the current debt value.
func (s *Service) WithdrawExcessCollateral(ctx context.Context, caller common.Address, id uint64, amount money.Amount) (*RequestDTO, error) {
	if amount.IsZero() {
		err := ledgererr.ZeroAmount("withdrawal")
		s.observe("withdraw_excess", err)
		return nil, err
	}
	pair, fetchErr := s.prefetch(ctx)

	var out *RequestDTO
	err := s.mutate(ctx, "withdraw_excess", func(t *txn) error {
		l, req, err := loadActiveLoan(ctx, t, caller, id)
		if err != nil {
			return err
		}
		if fetchErr != nil {
			return fetchErr
		}
		prices, err := pair.Resolve(t.now)
		if err != nil {
			return err
		}
		excess, err := s.calc.ExcessCollateral(req.ActualCollateral, req.RequiredCollateral, l.TotalDue, prices)
		if err != nil {
			return err
		}
		if amount.Gt(excess) {
			return ledgererr.ExcessWithdrawal(id, excess)
		}
		remaining, _ := req.ActualCollateral.Sub(amount)
		health, err := s.calc.HealthFactor(remaining, l.TotalDue, prices)
		if err != nil {
			return err
		}
		if health.Lt(uint256.NewInt(risk.MinCollateralRatio)) {
			return ledgererr.ExcessWithdrawal(id, excess)
		}

		if err := t.move(ctx, asset.ETH, s.cfg.Ledger, caller, amount, fmt.Sprintf("excess loan %d", id)); err != nil {
			return err
		}
		req.ActualCollateral = remaining
		if err := t.Requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save request %d: %w", id, err)
		}
		if err := t.emit(ctx, ledger.EventExcessCollateralWithdrawn, id, caller, map[string]any{
			"amount":    amount,
			"remaining": remaining,
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
