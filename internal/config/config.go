// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chainsound/evmirror/pkg/utils"
)

// Config holds all configuration for the application
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Source       ChainConfig        `mapstructure:"source"`
	Destination  ChainConfig        `mapstructure:"destination"`
	Verify       VerifyConfig       `mapstructure:"verify"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Notification NotificationConfig `mapstructure:"notification"`
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ChainConfig describes one chain endpoint and the block range to inspect.
// FromBlock/ToBlock of -1 mean "unset"; the verifier resolves a trailing
// window from the chain head in that case.
type ChainConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	FromBlock      int64         `mapstructure:"from_block"`
	ToBlock        int64         `mapstructure:"to_block"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// VerifyConfig contains the event-mirror verification parameters
type VerifyConfig struct {
	Signature       string        `mapstructure:"signature"`
	ContractAddress string        `mapstructure:"contract_address"`
	Step            uint64        `mapstructure:"step"`
	AllowedDrift    uint64        `mapstructure:"allowed_drift"`
	Concurrency     int           `mapstructure:"concurrency"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay   time.Duration `mapstructure:"max_retry_delay"`
	TrailingWindow  uint64        `mapstructure:"trailing_window"`
}

// StorageConfig contains run-history database configuration
type StorageConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
	RetentionDays    int           `mapstructure:"retention_days"`
}

// NotificationConfig contains mismatch webhook configuration
type NotificationConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	WebhookURL    string            `mapstructure:"webhook_url"`
	Method        string            `mapstructure:"method"`
	Headers       map[string]string `mapstructure:"headers"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	RetryAttempts int               `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration     `mapstructure:"retry_delay"`
}

// ServerConfig contains HTTP server configuration for serve mode
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("EVMIRROR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Legacy environment overrides kept for compatibility with shell setups
	if url := os.Getenv("SRC_RPC_URL"); url != "" {
		config.Source.Endpoint = url
	}
	if url := os.Getenv("DST_RPC_URL"); url != "" {
		config.Destination.Endpoint = url
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.name", "evmirror")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	viper.SetDefault("source.endpoint", "")
	viper.SetDefault("source.from_block", -1)
	viper.SetDefault("source.to_block", -1)
	viper.SetDefault("source.request_timeout", "30s")

	viper.SetDefault("destination.endpoint", "")
	viper.SetDefault("destination.from_block", -1)
	viper.SetDefault("destination.to_block", -1)
	viper.SetDefault("destination.request_timeout", "30s")

	viper.SetDefault("verify.step", 2000)
	viper.SetDefault("verify.allowed_drift", 0)
	viper.SetDefault("verify.concurrency", 4)
	viper.SetDefault("verify.retry_attempts", 3)
	viper.SetDefault("verify.retry_delay", "1s")
	viper.SetDefault("verify.max_retry_delay", "30s")
	viper.SetDefault("verify.trailing_window", 10000)

	viper.SetDefault("storage.enabled", false)
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.connection_string", "./data/evmirror.db")
	viper.SetDefault("storage.max_connections", 10)
	viper.SetDefault("storage.max_idle_time", "15m")
	viper.SetDefault("storage.retention_days", 30)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.method", "POST")
	viper.SetDefault("notification.timeout", "30s")
	viper.SetDefault("notification.retry_attempts", 3)
	viper.SetDefault("notification.retry_delay", "2s")

	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration for a verification run.
// Every failure here is a configuration error: the run never starts.
func (c *Config) Validate() error {
	if c.Verify.Signature == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			"Event signature is required")
	}
	if !strings.Contains(c.Verify.Signature, "(") || !strings.Contains(c.Verify.Signature, ")") {
		return utils.NewAppError(utils.ErrCodeValidation,
			"Event signature must look like Name(type1,type2,...)", c.Verify.Signature)
	}
	if !utils.IsValidAddress(c.Verify.ContractAddress) {
		return utils.NewAppError(utils.ErrCodeValidation,
			"Invalid contract address", c.Verify.ContractAddress)
	}
	if err := validateChain("source", &c.Source); err != nil {
		return err
	}
	if err := validateChain("destination", &c.Destination); err != nil {
		return err
	}
	if c.Verify.Step == 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			"Block chunk step must be positive")
	}
	if c.Verify.Concurrency <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			"Chunk concurrency must be positive")
	}
	if c.Verify.RetryAttempts <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			"Retry attempts must be positive")
	}
	if c.Notification.Enabled && c.Notification.WebhookURL == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			"Webhook URL is required when notifications are enabled")
	}
	return nil
}

func validateChain(role string, chain *ChainConfig) error {
	if chain.Endpoint == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Missing %s RPC endpoint", role))
	}
	if !strings.HasPrefix(chain.Endpoint, "http://") && !strings.HasPrefix(chain.Endpoint, "https://") {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Invalid %s RPC URL", role), chain.Endpoint)
	}
	if chain.FromBlock >= 0 && chain.ToBlock >= 0 && chain.FromBlock > chain.ToBlock {
		return utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("Invalid %s range", role), "from_block > to_block")
	}
	return nil
}
