package commands

import (
	"context"
	"fmt"

	"chainlend-backend/internal/adapter/chainlink"
	"chainlend-backend/internal/adapter/events"
	"chainlend-backend/internal/adapter/pricefeed"
	"chainlend-backend/internal/config"
	"chainlend-backend/internal/infrastructure/metrics"
	"chainlend-backend/internal/oracle"
	"chainlend-backend/internal/usecase/lending"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// buildOracle selects the price source. The returned func releases
// whatever connection the source holds.
func buildOracle(ctx context.Context, cfg *config.Config, rdb *redis.Client, m *metrics.Metrics, log *zap.Logger) (*oracle.Oracle, func(), error) {
	coll := oracle.Source{Name: "ETH/USD", MaxAge: cfg.CollateralMaxAge(), Decimals: uint8(cfg.FeedDecimals)}
	loanSrc := oracle.Source{Name: "USDC/USD", MaxAge: cfg.LoanMaxAge(), Decimals: uint8(cfg.FeedDecimals)}
	release := func() {}

	switch cfg.PriceSource {
	case config.PriceSourceChainlink:
		client, err := chainlink.Dial(ctx, cfg.EthRPCURL)
		if err != nil {
			return nil, nil, err
		}
		cf := chainlink.NewFeed(client, common.HexToAddress(cfg.CollateralFeed))
		lf := chainlink.NewFeed(client, common.HexToAddress(cfg.LoanFeed))
		// aggregators publish their own precision
		if coll.Decimals, err = cf.Decimals(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("collateral feed decimals: %w", err)
		}
		if loanSrc.Decimals, err = lf.Decimals(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("loan feed decimals: %w", err)
		}
		coll.Feed, loanSrc.Feed = cf, lf
		release = client.Close
	default:
		coll.Name, loanSrc.Name = cfg.CollateralFeed, cfg.LoanFeed
		coll.Feed = pricefeed.NewRedisFeed(rdb, cfg.CollateralFeed)
		loanSrc.Feed = pricefeed.NewRedisFeed(rdb, cfg.LoanFeed)
	}

	log.Info("price source ready",
		zap.String("source", cfg.PriceSource),
		zap.Uint8("collateral_decimals", coll.Decimals),
		zap.Uint8("loan_decimals", loanSrc.Decimals))
	return oracle.New(coll, loanSrc, m.ObserveOracleFetch), release, nil
}

// buildPublisher falls back to logging events when no brokers are set.
func buildPublisher(cfg *config.Config, log *zap.Logger) (lending.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.LogPublisher{Log: log}, func() {}, nil
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn("kafka writer close", zap.Error(err))
		}
	}, nil
}

func buildSettings(cfg *config.Config) lending.Settings {
	s := lending.DefaultSettings(cfg.OwnerAddress(), cfg.LedgerAddress())
	s.FaucetEnabled = cfg.FaucetEnabled
	return s
}
