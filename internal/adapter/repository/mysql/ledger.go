package mysql

import (
	"context"

	"chainlend-backend/internal/domain/ledger"

	"gorm.io/gorm"
)

type LedgerRepository struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) *LedgerRepository { return &LedgerRepository{db: db} }

func (r *LedgerRepository) Get(ctx context.Context) (*ledger.State, error) {
	var out ledger.State
	if err := r.db.WithContext(ctx).Where("id = ?", ledger.StateID).First(&out).Error; err != nil {
		return nil, notFound(err, ledger.ErrStateMissing)
	}
	return &out, nil
}

func (r *LedgerRepository) GetForUpdate(ctx context.Context) (*ledger.State, error) {
	var out ledger.State
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Where("id = ?", ledger.StateID).First(&out).Error; err != nil {
		return nil, notFound(err, ledger.ErrStateMissing)
	}
	return &out, nil
}

func (r *LedgerRepository) Save(ctx context.Context, s *ledger.State) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *LedgerRepository) AppendEvent(ctx context.Context, e *ledger.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *LedgerRepository) EventsByRequest(ctx context.Context, requestID uint64) ([]ledger.Event, error) {
	var out []ledger.Event
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
