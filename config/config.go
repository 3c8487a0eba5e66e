// Package config loads the engine's configuration from a JSON file with
// environment variable overrides, adapted from the teacher's config.Load()
// idiom (config/config.go) and narrowed to the single-pair engine's knobs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the engine's full runtime configuration.
type Config struct {
	TradingConfig        TradingConfig        `json:"trading"`
	IndicatorConfig      IndicatorConfig      `json:"indicators"`
	StrategyConfig       StrategyConfig       `json:"strategy"`
	MLConfig             MLConfig             `json:"ml"`
	RiskConfig           RiskConfig           `json:"risk"`
	CircuitBreakerConfig CircuitBreakerConfig `json:"circuit_breaker"`
	ExchangeConfig       ExchangeConfig       `json:"exchange"`
	LoggingConfig        LoggingConfig        `json:"logging"`
	DatabaseConfig       DatabaseConfig       `json:"database"`
	RedisConfig          RedisConfig          `json:"redis"`
	VaultConfig          VaultConfig          `json:"vault"`
	StatusConfig         StatusConfig         `json:"status"`
}

// TradingConfig is the engine's core identity and schedule.
type TradingConfig struct {
	Pair                  string   `json:"trading_pair"`
	WalletKeys            []string `json:"wallet_keys"`  // Vault addresses, one per wallet
	WalletNames           []string `json:"wallet_names"` // optional display names, same length as WalletKeys
	EnableExecution       bool     `json:"enable_execution"`
	CyclePeriodSecs       int      `json:"cycle_period_secs"`
	BackupIntervalMinutes int      `json:"backup_interval_minutes"`
}

type IndicatorConfig struct {
	RSIFastPeriod    int `json:"rsi_fast_period"`
	RSISlowPeriod    int `json:"rsi_slow_period"`
	SMAShortPeriod   int `json:"sma_short_period"`
	SMALongPeriod    int `json:"sma_long_period"`
	VolatilityWindow int `json:"volatility_window"`
}

type StrategyConfig struct {
	PriceChangeThreshold float64 `json:"price_change_threshold"`
}

type MLConfig struct {
	MLEnabled              bool    `json:"ml_enabled"`
	NeuralEnabled          bool    `json:"neural_enabled"`
	MinConfidenceThreshold float64 `json:"min_confidence_threshold"`
}

type RiskConfig struct {
	PositionSizePercentage float64 `json:"position_size_percentage"`
	MaxDailyDrawdownPct    float64 `json:"max_daily_drawdown_pct"`
	MaxOpenPositions       int     `json:"max_open_positions"`
	TrailingStopEnabled    bool    `json:"trailing_stop_enabled"`
	TrailingStopPercent    float64 `json:"trailing_stop_percent"`
	TrailingStopActivation float64 `json:"trailing_stop_activation"`
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled              bool    `json:"enabled"`
	MaxLossPerHour       float64 `json:"max_loss_per_hour"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	CooldownMinutes      int     `json:"cooldown_minutes"`
	MaxDailyLoss         float64 `json:"max_daily_loss"`
	MaxDailyTrades       int     `json:"max_daily_trades"`
}

type ExchangeConfig struct {
	BaseURL            string  `json:"base_url"`
	APIKey             string  `json:"api_key"`
	SlippageTolerance  float64 `json:"slippage_tolerance"`
	VerifyAttempts     int     `json:"verify_attempts"`
	VerifyIntervalSecs int     `json:"verify_interval_secs"`
	BaseTolerance      float64 `json:"base_tolerance"`
	QuoteTolerance     float64 `json:"quote_tolerance"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	JSONFormat bool   `json:"json_format"`
}

// DatabaseConfig holds Postgres connection configuration.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

// VaultConfig holds HashiCorp Vault configuration for wallet signing keys.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// StatusConfig holds the read-only status API surface.
type StatusConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	AuthToken string `json:"auth_token"`
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaultConfig()
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		TradingConfig: TradingConfig{
			Pair:                  "SOL/USDC",
			CyclePeriodSecs:       30,
			BackupIntervalMinutes: 15,
		},
		IndicatorConfig: IndicatorConfig{
			RSIFastPeriod:    14,
			RSISlowPeriod:    21,
			SMAShortPeriod:   20,
			SMALongPeriod:    50,
			VolatilityWindow: 20,
		},
		StrategyConfig: StrategyConfig{PriceChangeThreshold: 0.01},
		MLConfig: MLConfig{
			MLEnabled:              true,
			NeuralEnabled:          true,
			MinConfidenceThreshold: 0.55,
		},
		RiskConfig: RiskConfig{
			PositionSizePercentage: 0.1,
			MaxDailyDrawdownPct:    5.0,
			TrailingStopPercent:    1.0,
			TrailingStopActivation: 1.5,
		},
		CircuitBreakerConfig: CircuitBreakerConfig{
			Enabled:              true,
			MaxLossPerHour:       3.0,
			MaxConsecutiveLosses: 5,
			CooldownMinutes:      30,
			MaxDailyLoss:         5.0,
			MaxDailyTrades:       100,
		},
		ExchangeConfig: ExchangeConfig{
			SlippageTolerance:  0.01,
			VerifyAttempts:     12,
			VerifyIntervalSecs: 5,
			BaseTolerance:      0.001,
			QuoteTolerance:     0.01,
		},
		LoggingConfig: LoggingConfig{Level: "INFO", JSONFormat: true},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "trading",
			Database: "trading_engine",
			SSLMode:  "disable",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.TradingConfig.Pair = getEnvOrDefault("TRADING_PAIR", cfg.TradingConfig.Pair)
	cfg.TradingConfig.EnableExecution = getEnvOrDefault("ENABLE_EXECUTION", boolStr(cfg.TradingConfig.EnableExecution)) == "true"
	cfg.TradingConfig.CyclePeriodSecs = getEnvIntOrDefault("CYCLE_PERIOD_SECS", cfg.TradingConfig.CyclePeriodSecs)
	cfg.TradingConfig.BackupIntervalMinutes = getEnvIntOrDefault("BACKUP_INTERVAL_MINUTES", cfg.TradingConfig.BackupIntervalMinutes)
	if keys := os.Getenv("WALLET_KEYS"); keys != "" {
		cfg.TradingConfig.WalletKeys = strings.Split(keys, ",")
	}
	if names := os.Getenv("WALLET_NAMES"); names != "" {
		cfg.TradingConfig.WalletNames = strings.Split(names, ",")
	}

	cfg.MLConfig.MLEnabled = getEnvOrDefault("ML_ENABLED", boolStr(cfg.MLConfig.MLEnabled)) == "true"
	cfg.MLConfig.NeuralEnabled = getEnvOrDefault("NEURAL_ENABLED", boolStr(cfg.MLConfig.NeuralEnabled)) == "true"
	cfg.MLConfig.MinConfidenceThreshold = getEnvFloatOrDefault("MIN_CONFIDENCE_THRESHOLD", cfg.MLConfig.MinConfidenceThreshold)

	cfg.RiskConfig.PositionSizePercentage = getEnvFloatOrDefault("POSITION_SIZE_PERCENTAGE", cfg.RiskConfig.PositionSizePercentage)
	cfg.RiskConfig.MaxDailyDrawdownPct = getEnvFloatOrDefault("MAX_DAILY_DRAWDOWN_PCT", cfg.RiskConfig.MaxDailyDrawdownPct)

	cfg.CircuitBreakerConfig.Enabled = getEnvOrDefault("CIRCUIT_BREAKER_ENABLED", boolStr(cfg.CircuitBreakerConfig.Enabled)) == "true"
	cfg.CircuitBreakerConfig.MaxLossPerHour = getEnvFloatOrDefault("CIRCUIT_MAX_LOSS_PER_HOUR", cfg.CircuitBreakerConfig.MaxLossPerHour)
	cfg.CircuitBreakerConfig.MaxConsecutiveLosses = getEnvIntOrDefault("CIRCUIT_MAX_CONSECUTIVE_LOSSES", cfg.CircuitBreakerConfig.MaxConsecutiveLosses)
	cfg.CircuitBreakerConfig.CooldownMinutes = getEnvIntOrDefault("CIRCUIT_COOLDOWN_MINUTES", cfg.CircuitBreakerConfig.CooldownMinutes)

	cfg.ExchangeConfig.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.ExchangeConfig.BaseURL)
	cfg.ExchangeConfig.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.ExchangeConfig.APIKey)
	cfg.ExchangeConfig.SlippageTolerance = getEnvFloatOrDefault("SLIPPAGE_TOLERANCE", cfg.ExchangeConfig.SlippageTolerance)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolStr(cfg.LoggingConfig.JSONFormat)) == "true"

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolStr(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", boolStr(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", orDefault(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", orDefault(cfg.VaultConfig.SecretPath, "trading-engine/wallets"))

	cfg.StatusConfig.Enabled = getEnvOrDefault("STATUS_ENABLED", boolStr(cfg.StatusConfig.Enabled)) == "true"
	cfg.StatusConfig.Host = getEnvOrDefault("STATUS_HOST", orDefault(cfg.StatusConfig.Host, "0.0.0.0"))
	cfg.StatusConfig.Port = getEnvIntOrDefault("STATUS_PORT", orDefaultInt(cfg.StatusConfig.Port, 8090))
	cfg.StatusConfig.AuthToken = getEnvOrDefault("STATUS_AUTH_TOKEN", cfg.StatusConfig.AuthToken)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func orDefaultInt(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes a sample configuration file to disk.
func GenerateSampleConfig(filename string) error {
	cfg := defaultConfig()
	cfg.TradingConfig.WalletKeys = []string{"wallet-1", "wallet-2", "wallet-3"}
	cfg.TradingConfig.WalletNames = []string{"primary", "secondary", "tertiary"}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
