package asset

import (
	"context"

	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
)

type Repository interface {
	// GetForUpdate locks the balance row, returning a zero balance when absent.
	GetForUpdate(ctx context.Context, asset Symbol, account common.Address) (*Balance, error)
	BalanceOf(ctx context.Context, asset Symbol, account common.Address) (money.Amount, error)
	Save(ctx context.Context, b *Balance) error
	RecordTransfer(ctx context.Context, t *Transfer) error
}
