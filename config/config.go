package config

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"lottoclaim/database"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Ledger configuration
	RPCURL           string
	LotteryAddresses []common.Address // first entry receives calls and claims
	DeployBlock      uint64
	PlayerAddress    common.Address
	PrivateKey       string // hex, optional; required only for claims

	// Claim configuration
	ClaimBatchSize    int
	ConfirmTimeout    time.Duration
	ConfirmRetries    int
	ConfirmRetryDelay time.Duration
	ClaimableMaxAge   time.Duration
	AutoClaim         bool

	// Read configuration
	StatusQueryConcurrency int
	StatusBatchDelay       time.Duration
	LogChunkSize           uint64 // 0 = single query
	ReconcileInterval      time.Duration

	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), optional

	// Discord configuration
	DiscordToken     string
	DiscordChannelID string

	// HTTP configuration
	MetricsAddr string

	// Logging configuration
	LogLevel  string
	LogFormat string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// HasDatabase reports whether the claim receipt cache is configured
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// SigningKey parses PRIVATE_KEY; it returns nil, nil when no key is configured
func (c *Config) SigningKey() (*ecdsa.PrivateKey, error) {
	if c.PrivateKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRIVATE_KEY: %w", err)
	}
	return key, nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger
func (c *Config) ConfigureLogging() {
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithError(err).WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// load loads configuration from .env (if present) and environment variables
func load() (*Config, error) {
	loadDotEnv()
	return fromEnv(os.Getenv)
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to load .env file")
	}
}

// MigrationDatabaseURL reads only the database settings so migrations run without ledger configuration
func MigrationDatabaseURL() (string, error) {
	loadDotEnv()
	return migrationDatabaseURL(os.Getenv)
}

func migrationDatabaseURL(getenv func(string) string) (string, error) {
	baseURL := getenv("DATABASE_URL")
	if baseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	name := getenv("DATABASE_NAME")
	if name != "" && strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	return database.ConstructDatabaseURL(baseURL, name), nil
}

// fromEnv builds a Config from getenv, applying defaults and validation
func fromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, defaultValue string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return defaultValue
	}

	config := &Config{
		RPCURL:           getenv("RPC_URL"),
		PrivateKey:       getenv("PRIVATE_KEY"),
		DatabaseURL:      getenv("DATABASE_URL"),
		DatabaseName:     getenv("DATABASE_NAME"),
		NATSServers:      getenv("NATS_SERVERS"),
		DiscordToken:     getenv("DISCORD_TOKEN"),
		DiscordChannelID: getenv("DISCORD_CHANNEL_ID"),
		MetricsAddr:      env("METRICS_ADDR", ":9090"),
		LogLevel:         env("LOG_LEVEL", "info"),
		LogFormat:        env("LOG_FORMAT", "text"),
		Environment:      env("ENVIRONMENT", "development"),
	}

	var err error
	parse := func(key string, fn func(string) error) {
		if err != nil {
			return
		}
		if raw := getenv(key); raw != "" {
			if perr := fn(raw); perr != nil {
				err = fmt.Errorf("invalid %s %q: %w", key, raw, perr)
			}
		}
	}
	intVar := func(dst *int, def int) func(string) error {
		*dst = def
		return func(s string) error {
			v, perr := strconv.Atoi(s)
			*dst = v
			return perr
		}
	}
	durationVar := func(dst *time.Duration, def time.Duration) func(string) error {
		*dst = def
		return func(s string) error {
			v, perr := time.ParseDuration(s)
			*dst = v
			return perr
		}
	}
	uintVar := func(dst *uint64, def uint64) func(string) error {
		*dst = def
		return func(s string) error {
			v, perr := strconv.ParseUint(s, 10, 64)
			*dst = v
			return perr
		}
	}

	parse("CLAIM_BATCH_SIZE", intVar(&config.ClaimBatchSize, 50))
	parse("STATUS_QUERY_CONCURRENCY", intVar(&config.StatusQueryConcurrency, 10))
	parse("CONFIRM_RETRIES", intVar(&config.ConfirmRetries, 5))
	parse("STATUS_BATCH_DELAY", durationVar(&config.StatusBatchDelay, 100*time.Millisecond))
	parse("CONFIRM_TIMEOUT", durationVar(&config.ConfirmTimeout, 2*time.Minute))
	parse("CONFIRM_RETRY_DELAY", durationVar(&config.ConfirmRetryDelay, 2*time.Second))
	parse("RECONCILE_INTERVAL", durationVar(&config.ReconcileInterval, 5*time.Minute))
	parse("CLAIMABLE_MAX_AGE", durationVar(&config.ClaimableMaxAge, time.Minute))
	parse("LOTTERY_DEPLOY_BLOCK", uintVar(&config.DeployBlock, 0))
	parse("LOG_CHUNK_SIZE", uintVar(&config.LogChunkSize, 0))
	parse("AUTO_CLAIM", func(s string) error {
		v, perr := strconv.ParseBool(s)
		config.AutoClaim = v
		return perr
	})
	parse("LOTTERY_ADDRESS", func(s string) error {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !common.IsHexAddress(part) {
				return fmt.Errorf("not a hex address: %s", part)
			}
			config.LotteryAddresses = append(config.LotteryAddresses, common.HexToAddress(part))
		}
		return nil
	})
	parse("PLAYER_ADDRESS", func(s string) error {
		if !common.IsHexAddress(s) {
			return fmt.Errorf("not a hex address")
		}
		config.PlayerAddress = common.HexToAddress(s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// the signer is the player unless one is named explicitly
	if config.PlayerAddress == (common.Address{}) && config.PrivateKey != "" {
		key, kerr := config.SigningKey()
		if kerr != nil {
			return nil, kerr
		}
		config.PlayerAddress = crypto.PubkeyToAddress(key.PublicKey)
	}

	if config.Environment != "test" {
		if config.RPCURL == "" {
			return nil, fmt.Errorf("RPC_URL is required")
		}
		if len(config.LotteryAddresses) == 0 {
			return nil, fmt.Errorf("LOTTERY_ADDRESS is required")
		}
		if config.PlayerAddress == (common.Address{}) {
			return nil, fmt.Errorf("PLAYER_ADDRESS or PRIVATE_KEY is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
		if config.DiscordToken != "" && config.DiscordChannelID == "" {
			return nil, fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_TOKEN is set")
		}
	}

	return config, nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:            "test",
		LotteryAddresses:       []common.Address{common.HexToAddress("0x3333333333333333333333333333333333333333")},
		PlayerAddress:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		ClaimBatchSize:         50,
		StatusQueryConcurrency: 10,
		StatusBatchDelay:       0,
		ConfirmTimeout:         time.Second,
		ConfirmRetries:         3,
		ConfirmRetryDelay:      10 * time.Millisecond,
		ClaimableMaxAge:        time.Minute,
		ReconcileInterval:      time.Minute,
		MetricsAddr:            ":0",
		LogLevel:               "info",
		LogFormat:              "text",
	}
}
