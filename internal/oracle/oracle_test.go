package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"chainlend-backend/internal/domain/ledgererr"
)

type fakeFeed struct {
	round Round
	err   error
	calls int
}

func (f *fakeFeed) LatestRoundData(context.Context) (Round, error) {
	f.calls++
	return f.round, f.err
}

var now = time.Date(2025, 9, 6, 10, 0, 0, 0, time.UTC)

func reading(answer int64, age time.Duration) Reading {
	return Reading{Source: "ETH/USD", Answer: big.NewInt(answer), UpdatedAt: now.Add(-age), MaxAge: time.Hour, Decimals: 8}
}

func TestReading_Price(t *testing.T) {
	tests := []struct {
		name    string
		r       Reading
		wantErr error
	}{
		{"fresh positive", reading(2000e8, time.Minute), nil},
		{"exactly max age", reading(2000e8, time.Hour), nil},
		{"stale", reading(2000e8, time.Hour+time.Second), ledgererr.ErrStalePrice},
		{"zero", reading(0, 0), ledgererr.ErrInvalidPrice},
		{"negative", reading(-1, 0), ledgererr.ErrInvalidPrice},
		{"nil answer", Reading{Source: "x", UpdatedAt: now, MaxAge: time.Hour}, ledgererr.ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.r.Price(now)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				if p.Uint64() != uint64(tt.r.Answer.Int64()) {
					t.Fatalf("price = %s", p.Dec())
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReading_StaleCarriesBounds(t *testing.T) {
	r := reading(2000e8, 2*time.Hour)
	_, err := r.Price(now)
	var le *ledgererr.Error
	if !errors.As(err, &le) {
		t.Fatalf("want *ledgererr.Error, got %T", err)
	}
	if !le.UpdatedAt.Equal(r.UpdatedAt) || le.MaxAge != time.Hour {
		t.Fatalf("stale error lost bounds: %+v", le)
	}
}

func TestOracle_Fetch(t *testing.T) {
	coll := &fakeFeed{round: Round{Answer: big.NewInt(2000e8), UpdatedAt: now}}
	loan := &fakeFeed{round: Round{Answer: big.NewInt(1e8), UpdatedAt: now}}

	var observed []string
	o := New(
		Source{Name: "ETH/USD", Feed: coll, MaxAge: time.Hour, Decimals: 8},
		Source{Name: "USDC/USD", Feed: loan, MaxAge: time.Hour, Decimals: 8},
		func(source string, _ time.Duration, _ error) { observed = append(observed, source) },
	)
	pair, err := o.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	prices, err := pair.Resolve(now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if prices.Collateral.Uint64() != 2000e8 || prices.Loan.Uint64() != 1e8 {
		t.Fatalf("prices = %+v", prices)
	}
	if prices.CollateralDecimals != 8 || prices.LoanDecimals != 8 {
		t.Fatalf("decimals not carried: %+v", prices)
	}
	if len(observed) != 2 || observed[0] != "ETH/USD" {
		t.Fatalf("observer calls = %v", observed)
	}

	// freshness is judged at resolve time, not fetch time
	if _, err := pair.Resolve(now.Add(2 * time.Hour)); !errors.Is(err, ledgererr.ErrStalePrice) {
		t.Fatalf("want StalePrice at later resolve, got %v", err)
	}
}

func TestOracle_FetchError(t *testing.T) {
	boom := errors.New("rpc down")
	coll := &fakeFeed{err: boom}
	loan := &fakeFeed{}
	o := New(Source{Name: "ETH/USD", Feed: coll}, Source{Name: "USDC/USD", Feed: loan}, nil)

	if _, err := o.Fetch(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want rpc error, got %v", err)
	}
	if loan.calls != 0 {
		t.Fatalf("loan feed must not be read after collateral failure")
	}
}
