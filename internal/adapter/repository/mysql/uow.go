package mysql

import (
	"context"

	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func repos(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Requests: &RequestRepository{db: tx},
		Loans:    &LoanRepository{db: tx},
		Ledger:   &LedgerRepository{db: tx},
		Assets:   &AssetRepository{db: tx},
		Rewards:  &RewardRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repos(tx))
	})
}

func (u *GormUoW) WithinLedgerTx(ctx context.Context, fn func(r uow.Repos, st *ledger.State) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := repos(tx)
		// the state row serializes every writer
		st, err := r.Ledger.GetForUpdate(ctx)
		if err != nil {
			return err
		}
		if err := fn(r, st); err != nil {
			return err
		}
		return r.Ledger.Save(ctx, st)
	})
}
