package pricefeed

import (
	"context"
	"math/big"
	"sync"
	"time"

	"chainlend-backend/internal/oracle"
)

// Static is an in-process feed; tests and local runs move its price by hand.
type Static struct {
	mu        sync.Mutex
	answer    *big.Int
	updatedAt time.Time
	err       error
}

func NewStatic(answer int64, updatedAt time.Time) *Static {
	return &Static{answer: big.NewInt(answer), updatedAt: updatedAt}
}

func (s *Static) Set(answer int64, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer, s.updatedAt = big.NewInt(answer), updatedAt
}

// Fail makes subsequent reads return err; nil clears it.
func (s *Static) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Static) LatestRoundData(context.Context) (oracle.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return oracle.Round{}, s.err
	}
	return oracle.Round{Answer: new(big.Int).Set(s.answer), UpdatedAt: s.updatedAt}, nil
}
