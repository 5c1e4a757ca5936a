package mysql

import (
	"context"
	"errors"
	"time"

	"chainlend-backend/internal/domain/reward"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardRepository struct{ db *gorm.DB }

func NewRewardRepository(db *gorm.DB) *RewardRepository { return &RewardRepository{db: db} }

func (r *RewardRepository) pending(q *gorm.DB, account common.Address) (*reward.Pending, error) {
	var out reward.Pending
	err := q.Where("account = ?", account).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &reward.Pending{Account: account}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RewardRepository) GetPending(ctx context.Context, account common.Address) (*reward.Pending, error) {
	return r.pending(r.db.WithContext(ctx), account)
}

func (r *RewardRepository) GetPendingForUpdate(ctx context.Context, account common.Address) (*reward.Pending, error) {
	return r.pending(r.db.WithContext(ctx).Clauses(forUpdate), account)
}

func (r *RewardRepository) SavePending(ctx context.Context, p *reward.Pending) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *RewardRepository) GetSupply(ctx context.Context, symbol string) (*reward.Supply, error) {
	var out reward.Supply
	if err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&out).Error; err != nil {
		return nil, notFound(err, reward.ErrSupplyMissing)
	}
	return &out, nil
}

func (r *RewardRepository) GetSupplyForUpdate(ctx context.Context, symbol string) (*reward.Supply, error) {
	var out reward.Supply
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Where("symbol = ?", symbol).First(&out).Error; err != nil {
		return nil, notFound(err, reward.ErrSupplyMissing)
	}
	return &out, nil
}

func (r *RewardRepository) SaveSupply(ctx context.Context, s *reward.Supply) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *RewardRepository) IsMinter(ctx context.Context, symbol string, account common.Address) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&reward.Minter{}).
		Where("symbol = ? AND account = ?", symbol, account).
		Count(&n).Error
	return n > 0, err
}

// AddMinter is idempotent.
func (r *RewardRepository) AddMinter(ctx context.Context, m *reward.Minter) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
}

func (r *RewardRepository) RemoveMinter(ctx context.Context, symbol string, account common.Address) error {
	return r.db.WithContext(ctx).
		Where("symbol = ? AND account = ?", symbol, account).
		Delete(&reward.Minter{}).Error
}
