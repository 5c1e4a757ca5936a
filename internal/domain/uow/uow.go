package uow

import (
	"context"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/loan"
	"chainlend-backend/internal/domain/reward"
)

// Repos is the repository set bound to one transaction.
type Repos struct {
	Requests loan.RequestRepository
	Loans    loan.Repository
	Ledger   ledger.Repository
	Assets   asset.Repository
	Rewards  reward.Repository
}

type UnitOfWork interface {
	// plain tx; reads get a consistent snapshot
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// WithinLedgerTx locks the protocol state row first, passes it in, and
	// persists it when fn succeeds. This is the global write serializer.
	WithinLedgerTx(ctx context.Context, fn func(r Repos, st *ledger.State) error) error
}
