package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // scheduler timezones must resolve in minimal images

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pinbar-signal-bot/internal/patterns"
	"pinbar-signal-bot/internal/risk"
	"pinbar-signal-bot/internal/strategy"
	"pinbar-signal-bot/internal/vault"
)

const defaultConfigFile = "config.json"

type Config struct {
	BinanceConfig        BinanceConfig              `json:"binance" yaml:"binance"`
	Symbols              []string                   `json:"symbols" yaml:"symbols" default:"[\"BTC/USDT\",\"ETH/USDT\"]" validate:"required,min=1,dive,required"`
	Timeframes           map[string]TimeframeConfig `json:"timeframes" yaml:"timeframes" validate:"required,min=1,dive"`
	StrategyConfig       StrategyConfig             `json:"strategy" yaml:"strategy"`
	PatternsConfig       PatternsConfig             `json:"patterns" yaml:"patterns"`
	RiskConfig           RiskConfig                 `json:"risk" yaml:"risk"`
	SchedulerConfig      SchedulerConfig            `json:"scheduler" yaml:"scheduler"`
	StoreConfig          StoreConfig                `json:"store" yaml:"store"`
	RedisConfig          RedisConfig                `json:"redis" yaml:"redis"`
	NotificationConfig   NotificationConfig         `json:"notification" yaml:"notification"`
	LoggingConfig        LoggingConfig              `json:"logging" yaml:"logging"`
	ServerConfig         ServerConfig               `json:"server" yaml:"server"`
	VaultConfig          VaultConfig                `json:"vault" yaml:"vault"`
	CircuitBreakerConfig CircuitBreakerConfig       `json:"circuit_breaker" yaml:"circuit_breaker"`
}

type BinanceConfig struct {
	APIKey             string  `json:"api_key" yaml:"api_key"`
	SecretKey          string  `json:"secret_key" yaml:"secret_key"`
	TestNet            bool    `json:"testnet" yaml:"testnet"`
	MockMode           bool    `json:"mock_mode" yaml:"mock_mode"` // Use simulated candles instead of the exchange
	RateLimitPerSecond float64 `json:"rate_limit_per_second" yaml:"rate_limit_per_second" default:"10" validate:"gt=0"`
	MaxRetries         int     `json:"max_retries" yaml:"max_retries" default:"3" validate:"min=1,max=10"`
	TimeoutSeconds     int     `json:"timeout_seconds" yaml:"timeout_seconds" default:"10" validate:"min=1"`
}

// TimeframeConfig is the schedule and sizing for one scan timeframe
type TimeframeConfig struct {
	Cron            string  `json:"cron" yaml:"cron" validate:"required"`
	HigherTimeframe string  `json:"higher_timeframe,omitempty" yaml:"higher_timeframe,omitempty"`
	PositionRatio   float64 `json:"position_ratio" yaml:"position_ratio" validate:"gte=0,lte=1"`
	MaxLeverage     int     `json:"max_leverage" yaml:"max_leverage" validate:"gte=0,lte=125"`
}

type StrategyConfig struct {
	Lookback            int               `json:"lookback" yaml:"lookback" default:"100" validate:"min=1"`
	MinCandles          int               `json:"min_candles" yaml:"min_candles" default:"50" validate:"min=15"`
	TrendLookback       int               `json:"trend_lookback" yaml:"trend_lookback" default:"200" validate:"min=200"`
	PatternWindow       int               `json:"pattern_window" yaml:"pattern_window" default:"3" validate:"min=1"`
	ATRPeriod           int               `json:"atr_period" yaml:"atr_period" default:"14" validate:"min=1"`
	MinVolatilityFilter bool              `json:"min_volatility_filter" yaml:"min_volatility_filter" default:"true"`
	MinATRRatio         float64           `json:"min_atr_ratio" yaml:"min_atr_ratio" default:"0.005" validate:"gte=0"`
	HigherTimeframes    map[string]string `json:"higher_timeframes,omitempty" yaml:"higher_timeframes,omitempty"`
}

type PatternsConfig struct {
	PinBar    bool `json:"pin_bar" yaml:"pin_bar" default:"true"`
	Engulfing bool `json:"engulfing" yaml:"engulfing"`
}

type RiskConfig struct {
	TotalCapital float64 `json:"total_capital" yaml:"total_capital" default:"10000" validate:"gt=0"`
	MaxDrawdown  float64 `json:"max_drawdown" yaml:"max_drawdown" default:"0.2" validate:"gt=0,lt=1"`
}

type SchedulerConfig struct {
	WorkerCount      int    `json:"worker_count" yaml:"worker_count" default:"3" validate:"min=1,max=5"`
	HeartbeatMinutes int    `json:"heartbeat_minutes" yaml:"heartbeat_minutes" default:"30" validate:"min=1"`
	Timezone         string `json:"timezone" yaml:"timezone" default:"UTC"`
}

type StoreConfig struct {
	Driver            string         `json:"driver" yaml:"driver" default:"sqlite" validate:"oneof=memory sqlite postgres"`
	SQLitePath        string         `json:"sqlite_path" yaml:"sqlite_path" default:"trading_signals.db"`
	Postgres          PostgresConfig `json:"postgres" yaml:"postgres"`
	QueueSize         int            `json:"queue_size" yaml:"queue_size" default:"256" validate:"min=1"`
	Workers           int            `json:"workers" yaml:"workers" default:"2" validate:"min=1"`
	WriteTimeoutSecs  int            `json:"write_timeout_seconds" yaml:"write_timeout_seconds" default:"5" validate:"min=1"`
	MemoryMaxLogs     int            `json:"memory_max_logs" yaml:"memory_max_logs" default:"1000"`
	ShutdownFlushSecs int            `json:"shutdown_flush_seconds" yaml:"shutdown_flush_seconds" default:"10"`
}

type PostgresConfig struct {
	Host     string `json:"host" yaml:"host" default:"localhost"`
	Port     int    `json:"port" yaml:"port" default:"5432"`
	User     string `json:"user" yaml:"user" default:"postgres"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database" default:"pinbar_signals"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode" default:"disable"`
	MaxConns int    `json:"max_conns" yaml:"max_conns" default:"5"`
}

// RedisConfig holds Redis configuration for the candle cache
type RedisConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	Address          string `json:"address" yaml:"address" default:"localhost:6379"`
	Password         string `json:"password" yaml:"password"`
	DB               int    `json:"db" yaml:"db"`
	PoolSize         int    `json:"pool_size" yaml:"pool_size" default:"10"`
	CandleTTLSeconds int    `json:"candle_ttl_seconds" yaml:"candle_ttl_seconds" default:"30" validate:"min=1"`
}

type NotificationConfig struct {
	ServerChan ServerChanConfig `json:"serverchan" yaml:"serverchan"`
	WeChatWork WeChatWorkConfig `json:"wechatwork" yaml:"wechatwork"`
	Telegram   TelegramConfig   `json:"telegram" yaml:"telegram"`
	Discord    DiscordConfig    `json:"discord" yaml:"discord"`
	Kafka      KafkaConfig      `json:"kafka" yaml:"kafka"`
}

type ServerChanConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	SendKey string `json:"sendkey" yaml:"sendkey"`
}

type WeChatWorkConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	CorpID  string `json:"corpid" yaml:"corpid"`
	Secret  string `json:"secret" yaml:"secret"`
	AgentID int    `json:"agentid" yaml:"agentid"`
	ToUser  string `json:"touser" yaml:"touser" default:"@all"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"bot_token" yaml:"bot_token"`
	ChatID   string `json:"chat_id" yaml:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
}

type KafkaConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Brokers     []string `json:"brokers" yaml:"brokers"`
	Topic       string   `json:"topic" yaml:"topic" default:"pinbar.signals"`
	Compression string   `json:"compression" yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
}

type LoggingConfig struct {
	Level       string `json:"level" yaml:"level" default:"INFO"`         // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output" yaml:"output" default:"stdout"`     // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format" yaml:"json_format" default:"true"` // Output as JSON
	IncludeFile bool   `json:"include_file" yaml:"include_file"`          // Include file and line number
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled         bool     `json:"enabled" yaml:"enabled" default:"true"`
	Port            int      `json:"port" yaml:"port" default:"8080" validate:"min=0,max=65535"`
	Host            string   `json:"host" yaml:"host" default:"0.0.0.0"`
	ProductionMode  bool     `json:"production_mode" yaml:"production_mode"`
	AllowedOrigins  []string `json:"allowed_origins" yaml:"allowed_origins"`
	RatePerMinute   int      `json:"rate_per_minute" yaml:"rate_per_minute" default:"120"`
	ShutdownTimeout int      `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10"` // Seconds
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Address    string `json:"address" yaml:"address" default:"http://localhost:8200"`
	Token      string `json:"token" yaml:"token"`
	MountPath  string `json:"mount_path" yaml:"mount_path" default:"secret"`        // KV secrets engine mount path
	SecretPath string `json:"secret_path" yaml:"secret_path" default:"pinbar-bot"` // Path of the bot's secret
	TLSEnabled bool   `json:"tls_enabled" yaml:"tls_enabled"`
	CACert     string `json:"ca_cert" yaml:"ca_cert"`
}

// CircuitBreakerConfig guards the market data provider
type CircuitBreakerConfig struct {
	Enabled                bool `json:"enabled" yaml:"enabled" default:"true"`
	MaxConsecutiveFailures int  `json:"max_consecutive_failures" yaml:"max_consecutive_failures" default:"5" validate:"min=1"`
	CooldownSeconds        int  `json:"cooldown_seconds" yaml:"cooldown_seconds" default:"120" validate:"min=1"`
}

// DefaultTimeframes are the scan schedules used when the file defines none.
// Each fires a minute or so after its candle closes.
func DefaultTimeframes() map[string]TimeframeConfig {
	return map[string]TimeframeConfig{
		"15m": {Cron: "1,16,31,46 * * * *", PositionRatio: 0.01, MaxLeverage: 3},
		"1h":  {Cron: "2 * * * *", PositionRatio: 0.01, MaxLeverage: 3},
		"4h":  {Cron: "3 */4 * * *", PositionRatio: 0.01, MaxLeverage: 3},
		"1d":  {Cron: "5 0 * * *", PositionRatio: 0.01, MaxLeverage: 3},
	}
}

// DefaultHigherTimeframes maps each scan timeframe to its trend timeframe
func DefaultHigherTimeframes() map[string]string {
	return map[string]string{"15m": "4h", "1h": "4h", "4h": "1d", "1d": "1w"}
}

// Load reads .env, the config file named by CONFIG_FILE (default
// config.json) and environment overrides, then validates the result.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return LoadFrom(getEnvOrDefault("CONFIG_FILE", defaultConfigFile))
}

// LoadFrom is Load without .env handling. A missing file means defaults.
func LoadFrom(filename string) (*Config, error) {
	cfg, err := loadFromFile(filename)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg, err = newDefault()
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	cfg.fillMaps()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDefault() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("error applying config defaults: %w", err)
	}
	return cfg, nil
}

// loadFromFile decodes JSON or YAML (by extension) over the defaults, so
// keys absent from the file keep their default values.
func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config, err := newDefault()
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, config)
	default:
		err = json.Unmarshal(file, config)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", filename, err)
	}

	return config, nil
}

func (c *Config) fillMaps() {
	if len(c.Timeframes) == 0 {
		c.Timeframes = DefaultTimeframes()
	}
	if c.StrategyConfig.HigherTimeframes == nil {
		c.StrategyConfig.HigherTimeframes = DefaultHigherTimeframes()
	}
}

var validate = validator.New()

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: scheduler timezone: %w", err)
	}
	return nil
}

// Location resolves the scheduler timezone
func (c *Config) Location() (*time.Location, error) {
	if c.SchedulerConfig.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.SchedulerConfig.Timezone)
}

// TimeframeLabels returns the configured timeframes in sorted order
func (c *Config) TimeframeLabels() []string {
	out := make([]string, 0, len(c.Timeframes))
	for tf := range c.Timeframes {
		out = append(out, tf)
	}
	sort.Strings(out)
	return out
}

// Crons maps each timeframe to its cron expression
func (c *Config) Crons() map[string]string {
	out := make(map[string]string, len(c.Timeframes))
	for tf, t := range c.Timeframes {
		out[tf] = t.Cron
	}
	return out
}

// HigherTimeframes merges the strategy map with per-timeframe overrides
func (c *Config) HigherTimeframes() map[string]string {
	out := make(map[string]string, len(c.StrategyConfig.HigherTimeframes))
	for k, v := range c.StrategyConfig.HigherTimeframes {
		out[k] = v
	}
	for tf, t := range c.Timeframes {
		if t.HigherTimeframe != "" {
			out[tf] = t.HigherTimeframe
		}
	}
	return out
}

// Strategy maps the strategy, timeframe and risk sections onto the
// pipeline config. The bot and the one-shot CLI both build from this.
func (c *Config) Strategy() strategy.Config {
	s := c.StrategyConfig
	sc := strategy.DefaultConfig()
	sc.Lookback = s.Lookback
	sc.MinCandles = s.MinCandles
	sc.TrendLookback = s.TrendLookback
	sc.PatternWindow = s.PatternWindow
	sc.ATRPeriod = s.ATRPeriod
	sc.MinVolatilityFilter = s.MinVolatilityFilter
	sc.MinATRRatio = s.MinATRRatio
	sc.HigherTimeframes = c.HigherTimeframes()

	sc.RiskParams = make(map[string]risk.Params, len(c.Timeframes))
	for tf, t := range c.Timeframes {
		sc.RiskParams[tf] = risk.Params{PositionRatio: t.PositionRatio, MaxLeverage: t.MaxLeverage}
	}
	return sc
}

// Patterns returns the detector toggles
func (c *Config) Patterns() patterns.Config {
	return patterns.Config{PinBar: c.PatternsConfig.PinBar, Engulfing: c.PatternsConfig.Engulfing}
}

// Risk returns the account-level sizing settings
func (c *Config) Risk() risk.Config {
	return risk.Config{TotalCapital: c.RiskConfig.TotalCapital, MaxDrawdown: c.RiskConfig.MaxDrawdown}
}

// ApplySecrets overrides credentials with non-empty values loaded from Vault
func (c *Config) ApplySecrets(s *vault.Secrets) {
	if s == nil {
		return
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.BinanceConfig.APIKey, s.BinanceAPIKey)
	set(&c.BinanceConfig.SecretKey, s.BinanceSecretKey)
	set(&c.NotificationConfig.ServerChan.SendKey, s.ServerChanKey)
	set(&c.NotificationConfig.WeChatWork.CorpID, s.WeChatCorpID)
	set(&c.NotificationConfig.WeChatWork.Secret, s.WeChatSecret)
	set(&c.NotificationConfig.Telegram.BotToken, s.TelegramBotToken)
	set(&c.NotificationConfig.Discord.WebhookURL, s.DiscordWebhookURL)
	set(&c.StoreConfig.Postgres.Password, s.PostgresPassword)
	set(&c.RedisConfig.Password, s.RedisPassword)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unset variables leave the file value in place.
func applyEnvOverrides(cfg *Config) {
	// Binance config
	cfg.BinanceConfig.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.BinanceConfig.APIKey)
	cfg.BinanceConfig.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.BinanceConfig.SecretKey)
	cfg.BinanceConfig.TestNet = getEnvBoolOrDefault("BINANCE_TESTNET", cfg.BinanceConfig.TestNet)
	cfg.BinanceConfig.MockMode = getEnvBoolOrDefault("BINANCE_MOCK_MODE", cfg.BinanceConfig.MockMode)
	cfg.BinanceConfig.RateLimitPerSecond = getEnvFloatOrDefault("BINANCE_RATE_LIMIT", cfg.BinanceConfig.RateLimitPerSecond)
	cfg.BinanceConfig.MaxRetries = getEnvIntOrDefault("BINANCE_MAX_RETRIES", cfg.BinanceConfig.MaxRetries)

	if symbols := os.Getenv("SYMBOLS"); symbols != "" {
		cfg.Symbols = splitList(symbols)
	}

	// Strategy and patterns
	cfg.StrategyConfig.MinVolatilityFilter = getEnvBoolOrDefault("MIN_VOLATILITY_FILTER", cfg.StrategyConfig.MinVolatilityFilter)
	cfg.PatternsConfig.Engulfing = getEnvBoolOrDefault("ENABLE_ENGULFING", cfg.PatternsConfig.Engulfing)

	// Risk
	cfg.RiskConfig.TotalCapital = getEnvFloatOrDefault("TOTAL_CAPITAL", cfg.RiskConfig.TotalCapital)
	cfg.RiskConfig.MaxDrawdown = getEnvFloatOrDefault("MAX_DRAWDOWN", cfg.RiskConfig.MaxDrawdown)

	// Scheduler
	cfg.SchedulerConfig.WorkerCount = getEnvIntOrDefault("WORKER_COUNT", cfg.SchedulerConfig.WorkerCount)
	cfg.SchedulerConfig.Timezone = getEnvOrDefault("SCHEDULER_TIMEZONE", cfg.SchedulerConfig.Timezone)

	// Store
	cfg.StoreConfig.Driver = getEnvOrDefault("STORE_DRIVER", cfg.StoreConfig.Driver)
	cfg.StoreConfig.SQLitePath = getEnvOrDefault("SQLITE_PATH", cfg.StoreConfig.SQLitePath)
	cfg.StoreConfig.Postgres.Host = getEnvOrDefault("DB_HOST", cfg.StoreConfig.Postgres.Host)
	cfg.StoreConfig.Postgres.Port = getEnvIntOrDefault("DB_PORT", cfg.StoreConfig.Postgres.Port)
	cfg.StoreConfig.Postgres.User = getEnvOrDefault("DB_USER", cfg.StoreConfig.Postgres.User)
	cfg.StoreConfig.Postgres.Password = getEnvOrDefault("DB_PASSWORD", cfg.StoreConfig.Postgres.Password)
	cfg.StoreConfig.Postgres.Database = getEnvOrDefault("DB_NAME", cfg.StoreConfig.Postgres.Database)
	cfg.StoreConfig.Postgres.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.StoreConfig.Postgres.SSLMode)

	// Redis
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Notification config
	n := &cfg.NotificationConfig
	n.ServerChan.Enabled = getEnvBoolOrDefault("ENABLE_SERVERCHAN", n.ServerChan.Enabled)
	n.ServerChan.SendKey = getEnvOrDefault("SERVERCHAN_SCKEY", n.ServerChan.SendKey)
	n.WeChatWork.Enabled = getEnvBoolOrDefault("ENABLE_WECHATWORK", n.WeChatWork.Enabled)
	n.WeChatWork.CorpID = getEnvOrDefault("WECHATWORK_CORPID", n.WeChatWork.CorpID)
	n.WeChatWork.Secret = getEnvOrDefault("WECHATWORK_SECRET", n.WeChatWork.Secret)
	n.WeChatWork.AgentID = getEnvIntOrDefault("WECHATWORK_AGENTID", n.WeChatWork.AgentID)
	n.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", n.Telegram.Enabled)
	n.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", n.Telegram.BotToken)
	n.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", n.Telegram.ChatID)
	n.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", n.Discord.Enabled)
	n.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", n.Discord.WebhookURL)
	n.Kafka.Enabled = getEnvBoolOrDefault("KAFKA_ENABLED", n.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		n.Kafka.Brokers = splitList(brokers)
	}
	n.Kafka.Topic = getEnvOrDefault("KAFKA_TOPIC", n.Kafka.Topic)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	// Server config
	cfg.ServerConfig.Enabled = getEnvBoolOrDefault("WEB_ENABLED", cfg.ServerConfig.Enabled)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.ProductionMode = getEnvBoolOrDefault("WEB_PRODUCTION", cfg.ServerConfig.ProductionMode)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	// Circuit breaker config
	cfg.CircuitBreakerConfig.Enabled = getEnvBoolOrDefault("CIRCUIT_BREAKER_ENABLED", cfg.CircuitBreakerConfig.Enabled)
	cfg.CircuitBreakerConfig.MaxConsecutiveFailures = getEnvIntOrDefault("CIRCUIT_MAX_FAILURES", cfg.CircuitBreakerConfig.MaxConsecutiveFailures)
	cfg.CircuitBreakerConfig.CooldownSeconds = getEnvIntOrDefault("CIRCUIT_COOLDOWN_SECONDS", cfg.CircuitBreakerConfig.CooldownSeconds)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
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

// GenerateSampleConfig creates a sample configuration file. The format
// follows the extension (.yaml/.yml or JSON).
func GenerateSampleConfig(filename string) error {
	config, err := newDefault()
	if err != nil {
		return err
	}
	config.fillMaps()
	config.BinanceConfig.APIKey = "your_api_key_here"
	config.BinanceConfig.SecretKey = "your_secret_key_here"
	config.BinanceConfig.MockMode = true
	config.NotificationConfig.ServerChan.SendKey = "your_serverchan_sendkey"

	var data []byte
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
