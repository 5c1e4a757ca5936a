package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/ledger"
	"chainlend-backend/internal/domain/loan"
	"chainlend-backend/internal/domain/reward"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Models is every table the ledger owns, in creation order.
func Models() []any {
	return []any{
		&ledger.State{},
		&ledger.Event{},
		&loan.Request{},
		&loan.Loan{},
		&asset.Balance{},
		&asset.Transfer{},
		&reward.Pending{},
		&reward.Supply{},
		&reward.Minter{},
	}
}

// Migrate creates or alters the MySQL schema.
func Migrate(db *gorm.DB) error {
	return db.Set("gorm:table_options", "ENGINE=InnoDB").AutoMigrate(Models()...)
}

type BootstrapParams struct {
	Treasury common.Address
	// Ledger is the escrow account; it is registered as the reward minter.
	Ledger common.Address
}

// Bootstrap seeds the protocol state row, the reward token supply and the
// ledger's minter role. Existing rows are left as they are.
func Bootstrap(ctx context.Context, db *gorm.DB, p BootstrapParams) error {
	if p.Treasury == (common.Address{}) || p.Ledger == (common.Address{}) {
		return errors.New("bootstrap: treasury and ledger addresses are required")
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ignore := clause.OnConflict{DoNothing: true}
		st := &ledger.State{ID: ledger.StateID, NextRequestID: 1, Treasury: p.Treasury}
		if err := tx.Clauses(ignore).Create(st).Error; err != nil {
			return fmt.Errorf("bootstrap state: %w", err)
		}
		sup := &reward.Supply{Symbol: reward.TokenSymbol, MaxSupply: reward.MaxSupply}
		if err := tx.Clauses(ignore).Create(sup).Error; err != nil {
			return fmt.Errorf("bootstrap supply: %w", err)
		}
		m := &reward.Minter{Symbol: reward.TokenSymbol, Account: p.Ledger, CreatedAt: time.Now().UTC()}
		if err := tx.Clauses(ignore).Create(m).Error; err != nil {
			return fmt.Errorf("bootstrap minter: %w", err)
		}
		return nil
	})
}
