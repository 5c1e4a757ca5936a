// Package chainlink reads AggregatorV3 price feeds over JSON-RPC.
package chainlink

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"chainlend-backend/internal/oracle"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const aggregatorABI = `[
  {"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"latestRoundData","outputs":[
    {"name":"roundId","type":"uint80"},
    {"name":"answer","type":"int256"},
    {"name":"startedAt","type":"uint256"},
    {"name":"updatedAt","type":"uint256"},
    {"name":"answeredInRound","type":"uint80"}
  ],"stateMutability":"view","type":"function"}
]`

var parsedABI = mustParse()

func mustParse() abi.ABI {
	a, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		panic(err)
	}
	return a
}

// Caller is the read-only slice of an RPC client; *ethclient.Client fits.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Feed struct {
	caller  Caller
	address common.Address
}

func NewFeed(c Caller, address common.Address) *Feed { return &Feed{caller: c, address: address} }

func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chainlink: dial %s: %w", url, err)
	}
	return c, nil
}

func (f *Feed) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := parsedABI.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &f.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chainlink: %s on %s: %w", method, f.address.Hex(), err)
	}
	return parsedABI.Unpack(method, out)
}

func (f *Feed) LatestRoundData(ctx context.Context) (oracle.Round, error) {
	vals, err := f.call(ctx, "latestRoundData")
	if err != nil {
		return oracle.Round{}, err
	}
	if len(vals) != 5 {
		return oracle.Round{}, fmt.Errorf("chainlink: latestRoundData returned %d values", len(vals))
	}
	answer, ok1 := vals[1].(*big.Int)
	updatedAt, ok2 := vals[3].(*big.Int)
	if !ok1 || !ok2 {
		return oracle.Round{}, errors.New("chainlink: unexpected latestRoundData types")
	}
	return oracle.Round{Answer: answer, UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC()}, nil
}

func (f *Feed) Decimals(ctx context.Context) (uint8, error) {
	vals, err := f.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return 0, errors.New("chainlink: unexpected decimals type")
	}
	return d, nil
}
