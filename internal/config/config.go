// Package config loads the copy-trade service configuration from a YAML file,
// an optional .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/copytrade"
	"aptos-copytrade/internal/decoder"
	"aptos-copytrade/internal/dex"
	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/executor"
)

// DefaultNodeURL is the Aptos mainnet REST endpoint.
const DefaultNodeURL = "https://fullnode.mainnet.aptoslabs.com/v1"

// Config is the service configuration.
type Config struct {
	Aptos      AptosConfig      `yaml:"aptos"`
	Liquidswap LiquidswapConfig `yaml:"liquidswap"`
	Engine     EngineConfig     `yaml:"engine"`
	Storage    StorageConfig    `yaml:"storage"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`

	// Wallets seed the in-memory wallet store. With PostgreSQL the wallets table is used instead.
	Wallets []WalletConfig `yaml:"wallets"`
}

// WalletConfig is a follower's default wallet. An empty address is derived from the key.
type WalletConfig struct {
	FollowerID string `yaml:"follower_id"`
	Address    string `yaml:"address"`
	PrivateKey string `yaml:"private_key"`
}

// AptosConfig configures the node client.
type AptosConfig struct {
	NodeURL          string        `yaml:"node_url"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	MaxGasAmount     uint64        `yaml:"max_gas_amount"`
	Expiration       time.Duration `yaml:"expiration"`
	ConfirmationPoll time.Duration `yaml:"confirmation_poll"`
}

// LiquidswapConfig selects the Liquidswap deployment.
type LiquidswapConfig struct {
	ResourceAccount string `yaml:"resource_account"`
	ModuleAccount   string `yaml:"module_account"`
}

// EngineConfig tunes the session runners and the executor.
type EngineConfig struct {
	PollInterval     time.Duration   `yaml:"poll_interval"`
	QueueSize        int             `yaml:"queue_size"`
	Slippage         decimal.Decimal `yaml:"slippage"`
	MinOutRatio      decimal.Decimal `yaml:"min_out_ratio"`
	ExecutionTimeout time.Duration   `yaml:"execution_timeout"`
	NotifyTimeout    time.Duration   `yaml:"notify_timeout"`
	LogBalance       bool            `yaml:"log_balance"`
}

// StorageConfig selects the stores. Empty DSNs disable the optional backends.
type StorageConfig struct {
	UseMemory     bool   `yaml:"use_memory"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Zero keeps the pgxpool defaults.
	PostgresMaxConns    int32         `yaml:"postgres_max_conns"`
	PostgresHealthCheck time.Duration `yaml:"postgres_health_check"`
}

// TelegramConfig enables the Telegram notifier when BotToken is set.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	APIURL   string `yaml:"api_url"`
}

// HTTPConfig configures the control API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Aptos: AptosConfig{
			NodeURL:          DefaultNodeURL,
			Timeout:          aptos.DefaultTimeout,
			MaxRetries:       aptos.DefaultMaxRetries,
			MaxGasAmount:     aptos.DefaultMaxGasAmount,
			Expiration:       aptos.DefaultExpiration,
			ConfirmationPoll: aptos.DefaultConfirmationPoll,
		},
		Liquidswap: LiquidswapConfig{
			ResourceAccount: dex.LiquidswapResourceAccount,
			ModuleAccount:   dex.LiquidswapModuleAccount,
		},
		Engine: EngineConfig{
			PollInterval:     copytrade.DefaultPollInterval,
			QueueSize:        copytrade.DefaultQueueSize,
			Slippage:         executor.DefaultSlippage,
			MinOutRatio:      decoder.DefaultMinOutRatio,
			ExecutionTimeout: executor.DefaultTimeout,
			NotifyTimeout:    copytrade.DefaultNotifyTimeout,
		},
		Telegram: TelegramConfig{
			APIURL: "https://api.telegram.org",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// SeedWallets returns the configured wallets as default wallets, numbered from 1.
func (c *Config) SeedWallets() []*domain.Wallet {
	out := make([]*domain.Wallet, 0, len(c.Wallets))
	for i, w := range c.Wallets {
		out = append(out, &domain.Wallet{
			ID:         int64(i + 1),
			FollowerID: strings.TrimSpace(w.FollowerID),
			Address:    domain.NormalizeAddress(w.Address),
			PrivateKey: strings.TrimSpace(w.PrivateKey),
			IsDefault:  true,
		})
	}
	return out
}

// Override adjusts a loaded configuration before validation; command flags use it.
type Override func(*Config)

// Load builds the configuration: defaults, then the YAML file at path (optional),
// then environment variables, then overrides. The result is validated.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the environment without overriding variables
// that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("APTOS_NODE_URL", &c.Aptos.NodeURL)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)
	str("REDIS_ADDR", &c.Storage.RedisAddr)
	str("REDIS_PASSWORD", &c.Storage.RedisPassword)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	if v, ok := lookup("POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		c.Engine.PollInterval = d
	}
	if v, ok := lookup("COPYTRADE_SLIPPAGE"); ok && v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("COPYTRADE_SLIPPAGE: %w", err)
		}
		c.Engine.Slippage = d
	}
	follower, _ := lookup("WALLET_FOLLOWER_ID")
	key, _ := lookup("WALLET_PRIVATE_KEY")
	if follower != "" || key != "" {
		address, _ := lookup("WALLET_ADDRESS")
		c.Wallets = append(c.Wallets, WalletConfig{FollowerID: follower, Address: address, PrivateKey: key})
	}
	if v, ok := lookup("USE_MEMORY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("USE_MEMORY: %w", err)
		}
		c.Storage.UseMemory = b
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Aptos.NodeURL) == "" {
		problems = append(problems, "aptos.node_url is required")
	}
	if c.Engine.PollInterval <= 0 {
		problems = append(problems, "engine.poll_interval must be positive")
	}
	if c.Engine.QueueSize <= 0 {
		problems = append(problems, "engine.queue_size must be positive")
	}
	if c.Engine.ExecutionTimeout <= 0 {
		problems = append(problems, "engine.execution_timeout must be positive")
	}
	if c.Engine.NotifyTimeout <= 0 {
		problems = append(problems, "engine.notify_timeout must be positive")
	}
	// The executor reads a zero slippage as its default, so zero is not a valid setting.
	if !c.Engine.Slippage.IsPositive() || c.Engine.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		problems = append(problems, "engine.slippage must be in (0, 1)")
	}
	if !c.Engine.MinOutRatio.IsPositive() || c.Engine.MinOutRatio.GreaterThan(decimal.NewFromInt(1)) {
		problems = append(problems, "engine.min_out_ratio must be in (0, 1]")
	}
	if c.Liquidswap.ResourceAccount == "" || c.Liquidswap.ModuleAccount == "" {
		problems = append(problems, "liquidswap accounts are required")
	}
	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		problems = append(problems, "storage.postgres_dsn is required unless storage.use_memory is set")
	}
	if len(c.Wallets) > 0 && !c.Storage.UseMemory {
		problems = append(problems, "wallets can only be configured with storage.use_memory")
	}
	seen := make(map[string]bool, len(c.Wallets))
	for i, w := range c.Wallets {
		switch {
		case strings.TrimSpace(w.FollowerID) == "" || strings.TrimSpace(w.PrivateKey) == "":
			problems = append(problems, fmt.Sprintf("wallets[%d]: follower_id and private_key are required", i))
		case seen[w.FollowerID]:
			problems = append(problems, fmt.Sprintf("wallets[%d]: duplicate follower_id %q", i, w.FollowerID))
		}
		seen[w.FollowerID] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
