package ledger

import (
	"context"
	"errors"
)

var ErrStateMissing = errors.New("ledger: protocol state not initialised")

type Repository interface {
	Get(ctx context.Context) (*State, error)
	GetForUpdate(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error

	AppendEvent(ctx context.Context, e *Event) error
	EventsByRequest(ctx context.Context, requestID uint64) ([]Event, error)
}
