// Package oracle fetches the collateral and loan asset prices. Fetching
// is the only I/O the ledger performs; validation happens later, inside
// the transaction, against the clock at the moment of use.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"chainlend-backend/internal/domain/ledgererr"
	"chainlend-backend/internal/risk"

	"github.com/holiman/uint256"
)

// Round is one latestRoundData answer.
type Round struct {
	Answer    *big.Int
	UpdatedAt time.Time
}

type Feed interface {
	LatestRoundData(ctx context.Context) (Round, error)
}

// Source is a feed plus its staleness bound and fixed-point decimals.
type Source struct {
	Name     string
	Feed     Feed
	MaxAge   time.Duration
	Decimals uint8
}

// Reading is an unvalidated answer from a Source.
type Reading struct {
	Source    string
	Answer    *big.Int
	UpdatedAt time.Time
	MaxAge    time.Duration
	Decimals  uint8
}

// Observer is told how each fetch went; metrics hook in here.
type Observer func(source string, took time.Duration, err error)

func (s Source) Fetch(ctx context.Context) (Reading, error) {
	r, err := s.Feed.LatestRoundData(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("oracle %s: %w", s.Name, err)
	}
	return Reading{
		Source:    s.Name,
		Answer:    r.Answer,
		UpdatedAt: r.UpdatedAt,
		MaxAge:    s.MaxAge,
		Decimals:  s.Decimals,
	}, nil
}

// Price validates the reading at now: positive and no older than MaxAge.
func (r Reading) Price(now time.Time) (*uint256.Int, error) {
	if r.Answer == nil || r.Answer.Sign() <= 0 {
		return nil, ledgererr.InvalidPrice(r.Source)
	}
	if now.Sub(r.UpdatedAt) > r.MaxAge {
		return nil, ledgererr.StalePrice(r.Source, r.UpdatedAt, r.MaxAge)
	}
	p, overflow := uint256.FromBig(r.Answer)
	if overflow {
		return nil, ledgererr.InvalidPrice(r.Source)
	}
	return p, nil
}

// Pair is the two readings every pricing decision needs.
type Pair struct {
	Collateral Reading
	Loan       Reading
}

// Resolve validates both readings, collateral first.
func (p Pair) Resolve(now time.Time) (risk.Prices, error) {
	coll, err := p.Collateral.Price(now)
	if err != nil {
		return risk.Prices{}, err
	}
	loan, err := p.Loan.Price(now)
	if err != nil {
		return risk.Prices{}, err
	}
	return risk.Prices{
		Collateral:         coll,
		Loan:               loan,
		CollateralDecimals: p.Collateral.Decimals,
		LoanDecimals:       p.Loan.Decimals,
	}, nil
}

// Oracle reads both sources. No retries.
type Oracle struct {
	Collateral Source
	Loan       Source
	Observe    Observer
}

func New(collateral, loan Source, observe Observer) *Oracle {
	return &Oracle{Collateral: collateral, Loan: loan, Observe: observe}
}

func (o *Oracle) Fetch(ctx context.Context) (Pair, error) {
	coll, err := o.fetch(ctx, o.Collateral)
	if err != nil {
		return Pair{}, err
	}
	loan, err := o.fetch(ctx, o.Loan)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Collateral: coll, Loan: loan}, nil
}

func (o *Oracle) fetch(ctx context.Context, s Source) (Reading, error) {
	start := time.Now()
	r, err := s.Fetch(ctx)
	if o.Observe != nil {
		o.Observe(s.Name, time.Since(start), err)
	}
	return r, err
}
