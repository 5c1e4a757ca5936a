package lending

import (
	"context"
	"fmt"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/domain/reward"

	"github.com/ethereum/go-ethereum/common"
)

func (s *Service) requireOwner(caller common.Address) error {
	if caller != s.cfg.Owner {
		return ledgererr.Unauthorized(0, ledgererr.ReasonNotOwner)
	}
	return nil
}

func (s *Service) UpdateTreasury(ctx context.Context, caller, treasury common.Address) error {
	return s.mutate(ctx, "update_treasury", func(t *txn) error {
		if err := s.requireOwner(caller); err != nil {
			return err
		}
		if treasury == (common.Address{}) {
			return ledgererr.ZeroAddress("treasury")
		}
		old := t.st.Treasury
		t.st.Treasury = treasury
		return t.emit(ctx, ledger.EventTreasuryUpdated, 0, caller, map[string]any{
			"old": old,
			"new": treasury,
		})
	})
}

// EmergencyWithdraw moves loan-asset units out of the ledger's own account.
// Escrowed collateral is a different asset and is never touched.
func (s *Service) EmergencyWithdraw(ctx context.Context, caller, to common.Address, amount money.Amount) error {
	return s.mutate(ctx, "emergency_withdraw", func(t *txn) error {
		if err := s.requireOwner(caller); err != nil {
			return err
		}
		if to == (common.Address{}) {
			return ledgererr.ZeroAddress("recipient")
		}
		if amount.IsZero() {
			return ledgererr.ZeroAmount("withdrawal")
		}
		if err := t.move(ctx, asset.USDC, s.cfg.Ledger, to, amount, "emergency withdrawal"); err != nil {
			return err
		}
		return t.emit(ctx, ledger.EventEmergencyWithdrawal, 0, to, map[string]any{"amount": amount})
	})
}

func (s *Service) AddMinter(ctx context.Context, caller, account common.Address) error {
	return s.mutate(ctx, "add_minter", func(t *txn) error {
		if err := s.requireOwner(caller); err != nil {
			return err
		}
		if account == (common.Address{}) {
			return ledgererr.ZeroAddress("minter")
		}
		if err := t.Rewards.AddMinter(ctx, &reward.Minter{Symbol: reward.TokenSymbol, Account: account, CreatedAt: t.now}); err != nil {
			return fmt.Errorf("add minter: %w", err)
		}
		return t.emit(ctx, ledger.EventMinterAdded, 0, account, map[string]any{"symbol": reward.TokenSymbol})
	})
}

func (s *Service) RemoveMinter(ctx context.Context, caller, account common.Address) error {
	return s.mutate(ctx, "remove_minter", func(t *txn) error {
		if err := s.requireOwner(caller); err != nil {
			return err
		}
		ok, err := t.Rewards.IsMinter(ctx, reward.TokenSymbol, account)
		if err != nil {
			return fmt.Errorf("check minter: %w", err)
		}
		if !ok {
			return ledgererr.NotMinter()
		}
		if err := t.Rewards.RemoveMinter(ctx, reward.TokenSymbol, account); err != nil {
			return fmt.Errorf("remove minter: %w", err)
		}
		return t.emit(ctx, ledger.EventMinterRemoved, 0, account, map[string]any{"symbol": reward.TokenSymbol})
	})
}

// Faucet credits test balances of USDC or ETH. Disabled unless configured.
func (s *Service) Faucet(ctx context.Context, sym asset.Symbol, to common.Address, amount money.Amount) error {
	if !s.cfg.FaucetEnabled {
		return ledgererr.Unauthorized(0, "faucet disabled")
	}
	if sym != asset.USDC && sym != asset.ETH {
		return ledgererr.InvalidParameter("faucet asset must be USDC or ETH")
	}
	if amount.IsZero() {
		return ledgererr.ZeroAmount("faucet")
	}
	return s.mutate(ctx, "faucet", func(t *txn) error {
		if err := t.credit(ctx, sym, to, amount, "faucet"); err != nil {
			return err
		}
		return t.emit(ctx, ledger.EventFaucetCredited, 0, to, map[string]any{"asset": sym, "amount": amount})
	})
}
