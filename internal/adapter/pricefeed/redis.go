package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"chainlend-backend/internal/oracle"

	"github.com/redis/go-redis/v9"
)

var ErrNoPrice = errors.New("pricefeed: no price published")

// KeyPrefix namespaces manually published prices, e.g. "price:ETH/USD".
const KeyPrefix = "price:"

type storedRound struct {
	Answer    string `json:"answer"`
	UpdatedAt int64  `json:"updated_at"`
}

// RedisFeed serves a price written by an operator with Set.
type RedisFeed struct {
	rdb  *redis.Client
	pair string
}

func NewRedisFeed(rdb *redis.Client, pair string) *RedisFeed {
	return &RedisFeed{rdb: rdb, pair: pair}
}

func (f *RedisFeed) key() string { return KeyPrefix + f.pair }

func (f *RedisFeed) LatestRoundData(ctx context.Context) (oracle.Round, error) {
	v, err := f.rdb.Get(ctx, f.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return oracle.Round{}, fmt.Errorf("%w for %s", ErrNoPrice, f.pair)
	}
	if err != nil {
		return oracle.Round{}, err
	}
	var s storedRound
	if err := json.Unmarshal(v, &s); err != nil {
		return oracle.Round{}, fmt.Errorf("pricefeed: decode %s: %w", f.pair, err)
	}
	answer, ok := new(big.Int).SetString(s.Answer, 10)
	if !ok {
		return oracle.Round{}, fmt.Errorf("pricefeed: bad answer %q for %s", s.Answer, f.pair)
	}
	return oracle.Round{Answer: answer, UpdatedAt: time.Unix(s.UpdatedAt, 0).UTC()}, nil
}

// Set publishes answer as of at. The value never expires; staleness is
// judged by the reader.
func (f *RedisFeed) Set(ctx context.Context, answer *big.Int, at time.Time) error {
	payload, err := json.Marshal(storedRound{Answer: answer.String(), UpdatedAt: at.Unix()})
	if err != nil {
		return err
	}
	return f.rdb.Set(ctx, f.key(), payload, 0).Err()
}
