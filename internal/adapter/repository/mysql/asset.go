package mysql

import (
	"context"
	"errors"

	"chainlend-backend/internal/domain/asset"
	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

type AssetRepository struct{ db *gorm.DB }

func NewAssetRepository(db *gorm.DB) *AssetRepository { return &AssetRepository{db: db} }

func (r *AssetRepository) GetForUpdate(ctx context.Context, sym asset.Symbol, account common.Address) (*asset.Balance, error) {
	var out asset.Balance
	err := r.db.WithContext(ctx).Clauses(forUpdate).
		Where("asset = ? AND account = ?", sym, account).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &asset.Balance{Asset: sym, Account: account}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *AssetRepository) BalanceOf(ctx context.Context, sym asset.Symbol, account common.Address) (money.Amount, error) {
	var out asset.Balance
	err := r.db.WithContext(ctx).Where("asset = ? AND account = ?", sym, account).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return money.Zero(), nil
	}
	return out.Amount, err
}

// Save upserts on (asset, account).
func (r *AssetRepository) Save(ctx context.Context, b *asset.Balance) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *AssetRepository) RecordTransfer(ctx context.Context, t *asset.Transfer) error {
	return r.db.WithContext(ctx).Create(t).Error
}
