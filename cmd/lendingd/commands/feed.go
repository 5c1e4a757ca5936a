package commands

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"chainlend-backend/internal/adapter/pricefeed"
	"chainlend-backend/internal/config"
	"chainlend-backend/internal/infrastructure/cache"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Manage manual price rounds for the redis price source",
}

var feedSetCmd = &cobra.Command{
	Use:   "set <pair> <price>",
	Short: "Publish a price round, e.g. feed set ETH/USD 2000.50",
	Args:  cobra.ExactArgs(2),
	RunE:  runFeedSet,
}

func init() {
	feedSetCmd.Flags().String("at", "", "round timestamp, RFC3339 (default now)")
	feedCmd.AddCommand(feedSetCmd)
	rootCmd.AddCommand(feedCmd)
}

func runFeedSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.PriceSource != config.PriceSourceRedis {
		return fmt.Errorf("feed set needs PRICE_SOURCE=%s, have %s", config.PriceSourceRedis, cfg.PriceSource)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	answer, err := parsePrice(args[1], int32(cfg.FeedDecimals))
	if err != nil {
		return err
	}
	at := time.Now().UTC()
	if raw, _ := cmd.Flags().GetString("at"); raw != "" {
		if at, err = time.Parse(time.RFC3339, raw); err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}

	rdb, err := cache.OpenRedis(cmd.Context(), cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	if err := pricefeed.NewRedisFeed(rdb, args[0]).Set(cmd.Context(), answer, at); err != nil {
		return fmt.Errorf("feed set %s: %w", args[0], err)
	}
	log.Info("price round published",
		zap.String("pair", args[0]),
		zap.String("answer", answer.String()),
		zap.Time("updated_at", at))
	return nil
}

// parsePrice scales a human price to the feed's fixed point. Sub-unit
// digits beyond the feed's precision are an error, not rounded.
func parsePrice(raw string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", raw, err)
	}
	if !d.IsPositive() {
		return nil, errors.New("price must be positive")
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("price %q has more than %d decimals", raw, decimals)
	}
	return scaled.BigInt(), nil
}
