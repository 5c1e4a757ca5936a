package asset

import (
	"context"
	"fmt"
	"time"

	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/pkg/id"

	"github.com/ethereum/go-ethereum/common"
)

// Move debits from and credits to, journaling the transfer at at. An
// insufficient balance fails with TransferFailed and leaves both rows
// untouched. Zero amounts are a no-op.
func Move(ctx context.Context, r Repository, sym Symbol, from, to common.Address, amount money.Amount, at time.Time, memo string) error {
	if amount.IsZero() {
		return nil
	}
	if to == (common.Address{}) {
		return ledgererr.TransferFailed(amount, "transfer to zero address")
	}
	src, err := r.GetForUpdate(ctx, sym, from)
	if err != nil {
		return fmt.Errorf("load %s balance: %w", sym, err)
	}
	if src.Amount.Lt(amount) {
		return ledgererr.TransferFailed(amount, ledgererr.ReasonInsufficientFunds)
	}
	if from == to {
		return record(ctx, r, sym, from, to, amount, at, memo)
	}
	dst, err := r.GetForUpdate(ctx, sym, to)
	if err != nil {
		return fmt.Errorf("load %s balance: %w", sym, err)
	}

	src.Amount, _ = src.Amount.Sub(amount)
	if dst.Amount, err = dst.Amount.Add(amount); err != nil {
		return ledgererr.TransferFailed(amount, err.Error())
	}
	if err := r.Save(ctx, src); err != nil {
		return err
	}
	if err := r.Save(ctx, dst); err != nil {
		return err
	}
	return record(ctx, r, sym, from, to, amount, at, memo)
}

// Credit creates new units of sym for to. Supply caps are the caller's concern.
func Credit(ctx context.Context, r Repository, sym Symbol, to common.Address, amount money.Amount, at time.Time, memo string) error {
	if to == (common.Address{}) {
		return ledgererr.ZeroAddress("mint to zero address")
	}
	if amount.IsZero() {
		return nil
	}
	dst, err := r.GetForUpdate(ctx, sym, to)
	if err != nil {
		return fmt.Errorf("load %s balance: %w", sym, err)
	}
	if dst.Amount, err = dst.Amount.Add(amount); err != nil {
		return ledgererr.InvalidAmount(amount, err.Error())
	}
	if err := r.Save(ctx, dst); err != nil {
		return err
	}
	return record(ctx, r, sym, common.Address{}, to, amount, at, memo)
}

func record(ctx context.Context, r Repository, sym Symbol, from, to common.Address, amount money.Amount, at time.Time, memo string) error {
	return r.RecordTransfer(ctx, &Transfer{
		ID:        id.NewID32(),
		Asset:     sym,
		From:      from,
		To:        to,
		Amount:    amount,
		Memo:      memo,
		CreatedAt: at.UTC(),
	})
}
