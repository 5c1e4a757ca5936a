package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	PriceSourceRedis     = "redis"
	PriceSourceChainlink = "chainlink"
)

type Config struct {
	AppPort string `yaml:"app_port"`

	MySQLHost string `yaml:"mysql_host"`
	MySQLPort string `yaml:"mysql_port"`
	MySQLDB   string `yaml:"mysql_db"`
	MySQLUser string `yaml:"mysql_user"`
	MySQLPass string `yaml:"mysql_pass"`

	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	IdempTTLSecs int `yaml:"idempotency_ttl_seconds"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	LogDev   bool   `yaml:"log_development"`

	// hex addresses
	Owner    string `yaml:"owner"`
	Treasury string `yaml:"treasury"`
	Ledger   string `yaml:"ledger"`

	PriceSource string `yaml:"price_source"`
	EthRPCURL   string `yaml:"eth_rpc_url"`
	// chainlink aggregator addresses, or redis pair names
	CollateralFeed       string `yaml:"collateral_feed"`
	LoanFeed             string `yaml:"loan_feed"`
	CollateralMaxAgeSecs int    `yaml:"collateral_max_age_seconds"`
	LoanMaxAgeSecs       int    `yaml:"loan_max_age_seconds"`
	FeedDecimals         int    `yaml:"feed_decimals"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	FaucetEnabled bool `yaml:"faucet_enabled"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func defaults() *Config {
	return &Config{
		AppPort:   "8080",
		MySQLHost: "mysql",
		MySQLPort: "3306",
		MySQLDB:   "chainlend",
		MySQLUser: "chainlend",
		MySQLPass: "chainlend",

		RedisAddr:    "redis:6379",
		IdempTTLSecs: 300,

		LogLevel: "info",

		PriceSource:          PriceSourceRedis,
		CollateralFeed:       "ETH/USD",
		LoanFeed:             "USDC/USD",
		CollateralMaxAgeSecs: 3600,
		LoanMaxAgeSecs:       3600,
		FeedDecimals:         8,

		KafkaTopic: "chainlend.ledger-events",
	}
}

// Load layers defaults, then the YAML file named by CONFIG_FILE, then env.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	return c, nil
}

// ApplyFile overlays the keys present in a YAML file.
func (c *Config) ApplyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppPort = getenv("APP_PORT", c.AppPort)
	c.MySQLHost = getenv("MYSQL_HOST", c.MySQLHost)
	c.MySQLPort = getenv("MYSQL_PORT", c.MySQLPort)
	c.MySQLDB = getenv("MYSQL_DB", c.MySQLDB)
	c.MySQLUser = getenv("MYSQL_USER", c.MySQLUser)
	c.MySQLPass = getenv("MYSQL_PASS", c.MySQLPass)

	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisDB = getenvInt("REDIS_DB", c.RedisDB)
	c.IdempTTLSecs = getenvInt("IDEMPOTENCY_TTL_SECONDS", c.IdempTTLSecs)

	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getenv("LOG_FILE", c.LogFile)
	c.LogDev = getenvBool("LOG_DEVELOPMENT", c.LogDev)

	c.Owner = getenv("OWNER_ADDRESS", c.Owner)
	c.Treasury = getenv("TREASURY_ADDRESS", c.Treasury)
	c.Ledger = getenv("LEDGER_ADDRESS", c.Ledger)

	c.PriceSource = getenv("PRICE_SOURCE", c.PriceSource)
	c.EthRPCURL = getenv("ETH_RPC_URL", c.EthRPCURL)
	c.CollateralFeed = getenv("COLLATERAL_FEED", c.CollateralFeed)
	c.LoanFeed = getenv("LOAN_FEED", c.LoanFeed)
	c.CollateralMaxAgeSecs = getenvInt("COLLATERAL_MAX_AGE_SECONDS", c.CollateralMaxAgeSecs)
	c.LoanMaxAgeSecs = getenvInt("LOAN_MAX_AGE_SECONDS", c.LoanMaxAgeSecs)
	c.FeedDecimals = getenvInt("FEED_DECIMALS", c.FeedDecimals)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	c.KafkaTopic = getenv("KAFKA_TOPIC", c.KafkaTopic)

	c.FaucetEnabled = getenvBool("FAUCET_ENABLED", c.FaucetEnabled)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	for name, v := range map[string]string{
		"OWNER_ADDRESS":    c.Owner,
		"TREASURY_ADDRESS": c.Treasury,
		"LEDGER_ADDRESS":   c.Ledger,
	} {
		if err := checkAddress(name, v); err != nil {
			return err
		}
	}
	switch c.PriceSource {
	case PriceSourceRedis:
		if c.CollateralFeed == "" || c.LoanFeed == "" {
			return errors.New("missing COLLATERAL_FEED/LOAN_FEED")
		}
	case PriceSourceChainlink:
		if c.EthRPCURL == "" {
			return errors.New("missing ETH_RPC_URL for chainlink price source")
		}
		if err := checkAddress("COLLATERAL_FEED", c.CollateralFeed); err != nil {
			return err
		}
		if err := checkAddress("LOAN_FEED", c.LoanFeed); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid PRICE_SOURCE %q", c.PriceSource)
	}
	if c.CollateralMaxAgeSecs <= 0 || c.LoanMaxAgeSecs <= 0 {
		return errors.New("feed max age must be positive")
	}
	if c.FeedDecimals < 0 || c.FeedDecimals > 36 {
		return fmt.Errorf("invalid FEED_DECIMALS %d", c.FeedDecimals)
	}
	return nil
}

func checkAddress(name, v string) error {
	if !common.IsHexAddress(v) {
		return fmt.Errorf("invalid %s %q", name, v)
	}
	if common.HexToAddress(v) == (common.Address{}) {
		return fmt.Errorf("%s must not be the zero address", name)
	}
	return nil
}

func (c *Config) OwnerAddress() common.Address    { return common.HexToAddress(c.Owner) }
func (c *Config) TreasuryAddress() common.Address { return common.HexToAddress(c.Treasury) }
func (c *Config) LedgerAddress() common.Address   { return common.HexToAddress(c.Ledger) }

func (c *Config) CollateralMaxAge() time.Duration {
	return time.Duration(c.CollateralMaxAgeSecs) * time.Second
}
func (c *Config) LoanMaxAge() time.Duration { return time.Duration(c.LoanMaxAgeSecs) * time.Second }
func (c *Config) IdempTTL() time.Duration   { return time.Duration(c.IdempTTLSecs) * time.Second }

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
