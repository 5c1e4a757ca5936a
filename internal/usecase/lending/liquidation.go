package lending

import (
	"context"
	"fmt"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/loan"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/risk"

	"github.com/ethereum/go-ethereum/common"
)

// LiquidateCollateral seizes the deposit of a loan below the 130%
// threshold. Anyone may call it; the caller earns the bonus.
func (s *Service) LiquidateCollateral(ctx context.Context, caller common.Address, id uint64) (*Liquidation, error) {
	pair, fetchErr := s.prefetch(ctx)

	var out *Liquidation
	err := s.mutate(ctx, "liquidate", func(t *txn) error {
		l, err := loadLoan(ctx, t, id)
		if err != nil {
			return err
		}
		if l.Status != loan.StatusActive {
			return ledgererr.InvalidLoan(id, ledgererr.ReasonLoanNotActive)
		}
		if fetchErr != nil {
			return fetchErr
		}
		prices, err := pair.Resolve(t.now)
		if err != nil {
			return err
		}
		req, err := t.Requests.GetByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load request %d: %w", id, err)
		}
		health, err := s.calc.HealthFactor(req.ActualCollateral, l.TotalDue, prices)
		if err != nil {
			return err
		}
		if !risk.Liquidatable(health) {
			return ledgererr.InvalidLoan(id, ledgererr.ReasonLoanHealthy)
		}

		split, err := s.calc.Liquidation(req.ActualCollateral, l.TotalDue, prices)
		if err != nil {
			return err
		}
		memo := fmt.Sprintf("liquidate loan %d", id)
		for _, p := range []struct {
			to     common.Address
			amount money.Amount
		}{
			{caller, split.Liquidator},
			{t.st.Treasury, split.Treasury},
			{l.Lender, split.Lender},
			{l.Borrower, split.Borrower},
		} {
			if err := t.move(ctx, asset.ETH, s.cfg.Ledger, p.to, p.amount, memo); err != nil {
				return err
			}
		}

		seized := req.ActualCollateral
		req.ActualCollateral = money.Zero()
		if err := t.Requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save request %d: %w", id, err)
		}
		l.Status = loan.StatusLiquidated
		if err := t.Loans.Save(ctx, l); err != nil {
			return fmt.Errorf("save loan %d: %w", id, err)
		}
		t.st.TotalActiveLoans--

		if err := t.emit(ctx, ledger.EventLoanLiquidated, id, caller, map[string]any{
			"health_factor":      health.Dec(),
			"collateral":         seized,
			"liquidator_bonus":   split.Liquidator,
			"treasury_fee":       split.Treasury,
			"lender_share":       split.Lender,
			"borrower_remainder": split.Borrower,
		}); err != nil {
			return err
		}
		out = &Liquidation{
			RequestID:    id,
			HealthFactor: health,
			Collateral:   seized,
			Liquidator:   split.Liquidator,
			Treasury:     split.Treasury,
			Lender:       split.Lender,
			Borrower:     split.Borrower,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
