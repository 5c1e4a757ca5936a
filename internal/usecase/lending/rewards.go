package lending

import (
	"context"
	"fmt"

	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/domain/reward"

	"github.com/ethereum/go-ethereum/common"
)

// accrue credits pending rewards; nothing is minted until claimed.
func (s *Service) accrue(ctx context.Context, t *txn, requestID uint64, account common.Address, amount money.Amount) error {
	if amount.IsZero() {
		return nil
	}
	p, err := t.Rewards.GetPendingForUpdate(ctx, account)
	if err != nil {
		return fmt.Errorf("load pending rewards: %w", err)
	}
	if p.Amount, err = p.Amount.Add(amount); err != nil {
		return ledgererr.InvalidAmount(amount, err.Error())
	}
	if err := t.Rewards.SavePending(ctx, p); err != nil {
		return fmt.Errorf("save pending rewards: %w", err)
	}
	return t.emit(ctx, ledger.EventRewardsEarned, requestID, account, map[string]any{
		"amount":  amount,
		"pending": p.Amount,
	})
}

// ClaimRewards mints the caller's whole pending balance once it reaches
// the minimum claim.
func (s *Service) ClaimRewards(ctx context.Context, caller common.Address) (money.Amount, error) {
	var out money.Amount
	err := s.mutate(ctx, "claim_rewards", func(t *txn) error {
		p, err := t.Rewards.GetPendingForUpdate(ctx, caller)
		if err != nil {
			return fmt.Errorf("load pending rewards: %w", err)
		}
		if p.Amount.Lt(s.cfg.MinClaim) {
			return ledgererr.InvalidAmount(p.Amount, ledgererr.ReasonBelowMinClaim)
		}
		if err := reward.Mint(ctx, t.Rewards, t.Assets, s.cfg.Ledger, caller, p.Amount, t.now); err != nil {
			return err
		}
		out = p.Amount
		p.Amount = money.Zero()
		if err := t.Rewards.SavePending(ctx, p); err != nil {
			return fmt.Errorf("save pending rewards: %w", err)
		}
		return t.emit(ctx, ledger.EventRewardsClaimed, 0, caller, map[string]any{"amount": out})
	})
	if err != nil {
		return money.Amount{}, err
	}
	return out, nil
}
