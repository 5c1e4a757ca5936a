package reward

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var ErrSupplyMissing = errors.New("reward: token supply not initialised")

type Repository interface {
	GetPending(ctx context.Context, account common.Address) (*Pending, error)
	GetPendingForUpdate(ctx context.Context, account common.Address) (*Pending, error)
	SavePending(ctx context.Context, p *Pending) error

	GetSupply(ctx context.Context, symbol string) (*Supply, error)
	GetSupplyForUpdate(ctx context.Context, symbol string) (*Supply, error)
	SaveSupply(ctx context.Context, s *Supply) error

	IsMinter(ctx context.Context, symbol string, account common.Address) (bool, error)
	AddMinter(ctx context.Context, m *Minter) error
	RemoveMinter(ctx context.Context, symbol string, account common.Address) error
}
