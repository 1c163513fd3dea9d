package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is loaded once at startup
// and passed down by value; components never reach into the environment at
// runtime.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Venue    VenueConfig    `mapstructure:"venue"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Farming  FarmingConfig  `mapstructure:"farming"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	State    StateConfig    `mapstructure:"state"`
	Vault    VaultConfig    `mapstructure:"vault"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name      string `mapstructure:"name"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "json" or "console"
}

// VenueConfig contains perp venue API settings
type VenueConfig struct {
	APIURL         string `mapstructure:"api_url"`
	WSURL          string `mapstructure:"ws_url"`
	AccountAddress string `mapstructure:"account_address"`
	PrivateKey     string `mapstructure:"private_key"`
	TimeoutMS      int    `mapstructure:"timeout_ms"`
	RateLimitRPS   int    `mapstructure:"rate_limit_rps"`
}

// TradingConfig contains trading loop settings
type TradingConfig struct {
	Assets           []string `mapstructure:"assets"`
	MaxOpenPositions int      `mapstructure:"max_open_positions"`
	LoopInterval     int      `mapstructure:"loop_interval_seconds"`
	PausedSleep      int      `mapstructure:"paused_sleep_seconds"`
	DrawdownPause    float64  `mapstructure:"drawdown_pause_pct"`
	DrawdownResume   float64  `mapstructure:"drawdown_resume_pct"`
	PartialTPPct     float64  `mapstructure:"partial_tp_pct"`
	PartialTPSize    float64  `mapstructure:"partial_tp_size"`
	TrailingActivate float64  `mapstructure:"trailing_activate_pct"`
	TrailingRetrace  float64  `mapstructure:"trailing_retrace_pct"`
}

// OracleConfig contains sentiment oracle settings
type OracleConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TimeoutMS   int     `mapstructure:"timeout_ms"`
	CacheTTLMin int     `mapstructure:"cache_ttl_minutes"`
}

// RedisConfig contains optional Redis settings for the shared oracle cache.
// Leave Addr empty to run with the in-memory cache only.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TelegramConfig contains notifier settings
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// FarmingConfig contains airdrop farming settings
type FarmingConfig struct {
	BudgetUSD       float64 `mapstructure:"budget_usd"`
	GasReservePct   float64 `mapstructure:"gas_reserve_pct"`
	DailyGasUSD     float64 `mapstructure:"daily_gas_usd"`
	CampaignStart   string  `mapstructure:"campaign_start"` // YYYY-MM-DD
	CampaignDays    int     `mapstructure:"campaign_days"`
	DailyMaxActions int     `mapstructure:"daily_max_actions"`
	WeekendFactor   float64 `mapstructure:"weekend_factor"`
	ActiveHourStart int     `mapstructure:"active_hour_start"`
	ActiveHourEnd   int     `mapstructure:"active_hour_end"`
	ETHPriceUSD     float64 `mapstructure:"eth_price_usd"`
	PrivateKey      string  `mapstructure:"private_key"`
	DryRun          bool    `mapstructure:"dry_run"`
}

// MetricsConfig contains metrics/status server settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StateConfig contains state file locations
type StateConfig struct {
	Dir string `mapstructure:"dir"`
}

// VaultConfig contains optional HashiCorp Vault settings for secrets.
// When Address is empty, secrets come from the environment or env file.
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	SecretPath string `mapstructure:"secret_path"`
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hyperfarm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.hyperfarm")
	}

	v.SetEnvPrefix("HYPERFARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hyperfarm")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("venue.api_url", "https://api.hyperliquid.xyz")
	v.SetDefault("venue.ws_url", "wss://api.hyperliquid.xyz/ws")
	v.SetDefault("venue.timeout_ms", 10000)
	v.SetDefault("venue.rate_limit_rps", 10)

	v.SetDefault("trading.assets", []string{
		"BTC", "ETH", "SOL", "HYPE", "CRV", "DYDX", "ZRO", "xyz:GOLD", "xyz:SILVER",
	})
	v.SetDefault("trading.max_open_positions", 3)
	v.SetDefault("trading.loop_interval_seconds", 45)
	v.SetDefault("trading.paused_sleep_seconds", 300)
	v.SetDefault("trading.drawdown_pause_pct", 25.0)
	v.SetDefault("trading.drawdown_resume_pct", 12.5)
	v.SetDefault("trading.partial_tp_pct", 2.5)
	v.SetDefault("trading.partial_tp_size", 0.5)
	v.SetDefault("trading.trailing_activate_pct", 2.0)
	v.SetDefault("trading.trailing_retrace_pct", 1.0)

	v.SetDefault("oracle.endpoint", "https://api.perplexity.ai/chat/completions")
	v.SetDefault("oracle.model", "sonar-pro")
	v.SetDefault("oracle.temperature", 0.2)
	v.SetDefault("oracle.max_tokens", 500)
	v.SetDefault("oracle.timeout_ms", 30000)
	v.SetDefault("oracle.cache_ttl_minutes", 60)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("telegram.enabled", false)

	v.SetDefault("farming.budget_usd", 2.00)
	v.SetDefault("farming.gas_reserve_pct", 0.25)
	v.SetDefault("farming.daily_gas_usd", 0.10)
	v.SetDefault("farming.campaign_days", 60)
	v.SetDefault("farming.daily_max_actions", 5)
	v.SetDefault("farming.weekend_factor", 0.5)
	v.SetDefault("farming.active_hour_start", 8)
	v.SetDefault("farming.active_hour_end", 23)
	v.SetDefault("farming.eth_price_usd", 2700.0)
	v.SetDefault("farming.dry_run", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("state.dir", ".")
}

// Validate checks configuration for common mistakes
func (c *Config) Validate() error {
	if c.Trading.MaxOpenPositions < 1 {
		return fmt.Errorf("trading.max_open_positions must be at least 1, got %d", c.Trading.MaxOpenPositions)
	}
	if c.Trading.LoopInterval < 1 {
		return fmt.Errorf("trading.loop_interval_seconds must be positive, got %d", c.Trading.LoopInterval)
	}
	if len(c.Trading.Assets) == 0 {
		return fmt.Errorf("trading.assets must not be empty")
	}
	if c.Trading.DrawdownResume >= c.Trading.DrawdownPause {
		return fmt.Errorf("trading.drawdown_resume_pct (%.1f) must be below drawdown_pause_pct (%.1f)",
			c.Trading.DrawdownResume, c.Trading.DrawdownPause)
	}
	if c.Farming.GasReservePct < 0 || c.Farming.GasReservePct >= 1 {
		return fmt.Errorf("farming.gas_reserve_pct must be in [0,1), got %.2f", c.Farming.GasReservePct)
	}
	if c.Farming.ActiveHourStart >= c.Farming.ActiveHourEnd {
		return fmt.Errorf("farming.active_hour_start must be before active_hour_end")
	}
	if c.Farming.CampaignStart != "" {
		if _, err := time.Parse("2006-01-02", c.Farming.CampaignStart); err != nil {
			return fmt.Errorf("farming.campaign_start must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port)
	}
	return nil
}

// VenueTimeout returns the venue HTTP timeout as a duration
func (c *Config) VenueTimeout() time.Duration {
	return time.Duration(c.Venue.TimeoutMS) * time.Millisecond
}

// OracleTimeout returns the oracle HTTP timeout as a duration
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutMS) * time.Millisecond
}

// LoopInterval returns the trading loop tick as a duration
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Trading.LoopInterval) * time.Second
}
