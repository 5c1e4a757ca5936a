package reward

import (
	"context"
	"fmt"
	"time"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	TokenSymbol   = string(asset.CL)
	TokenDecimals = 18
)

// MaxSupply is the hard cap of the reward token: 100M whole tokens.
var MaxSupply = money.Units(100_000_000, TokenDecimals)

// Mint issues amount reward tokens to `to` on behalf of minter. A mint
// that would push total supply past the cap fails before any balance or
// supply row is written.
func Mint(ctx context.Context, rr Repository, ar asset.Repository, minter, to common.Address, amount money.Amount, at time.Time) error {
	if to == (common.Address{}) {
		return ledgererr.ZeroAddress("mint to zero address")
	}
	ok, err := rr.IsMinter(ctx, TokenSymbol, minter)
	if err != nil {
		return fmt.Errorf("check minter: %w", err)
	}
	if !ok {
		return ledgererr.NotMinter()
	}
	s, err := rr.GetSupplyForUpdate(ctx, TokenSymbol)
	if err != nil {
		return err
	}
	total, err := s.TotalSupply.Add(amount)
	if err != nil || total.Gt(s.MaxSupply) {
		return ledgererr.MaxSupplyExceeded(amount)
	}
	if err := asset.Credit(ctx, ar, asset.CL, to, amount, at, "reward mint"); err != nil {
		return err
	}
	s.TotalSupply = total
	return rr.SaveSupply(ctx, s)
}

// HolderShare is balance/total in basis points, zero when nothing is minted.
func HolderShare(balance, total money.Amount) uint64 {
	if total.IsZero() {
		return 0
	}
	n := new(uint256.Int).Mul(balance.Int(), uint256.NewInt(10000))
	return n.Div(n, total.Int()).Uint64()
}
