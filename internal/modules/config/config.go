package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	Service struct {
		Name     string `yaml:"name"`
		LogLevel string `yaml:"log_level"`
		LogJSON  bool   `yaml:"log_json"`
	} `yaml:"service"`

	PaperTrading bool `yaml:"paper_trading"`

	// торгуемые инструменты, OKX instId
	Symbols       []string                `yaml:"symbols"`
	SymbolTable   map[string]SymbolConfig `yaml:"symbol_table"`
	DefaultSymbol SymbolConfig            `yaml:"default_symbol"`

	OKX       OKXConfig       `yaml:"okx"`
	PriceFeed PriceFeedConfig `yaml:"price_feed"`
	Risk      RiskConfig      `yaml:"risk"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Safety    SafetyConfig    `yaml:"safety"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Runner    RunnerConfig    `yaml:"runner"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Store     StoreConfig     `yaml:"store"`
	Portfolio PortfolioConfig `yaml:"portfolio"`

	DB    string      `yaml:"db_dsn"`
	Redis RedisConfig `yaml:"redis"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`
}

type SymbolConfig struct {
	Class              string  `yaml:"class"` // flagship | high_volatility | standard
	LotSize            float64 `yaml:"lot_size"`
	MinSize            float64 `yaml:"min_size"`
	ContractMultiplier float64 `yaml:"contract_multiplier"`
	MaxContracts       float64 `yaml:"max_contracts"`
	Leverage           float64 `yaml:"leverage"`
	// плечо для оценки маржи в safety.validate_trade_size
	SafetyLeverage float64 `yaml:"safety_leverage"`
}

type OKXConfig struct {
	BaseURL    string        `yaml:"base_url"`
	WSURL      string        `yaml:"ws_url"`
	APIKey     string        `yaml:"api_key"`
	APISecret  string        `yaml:"api_secret"`
	Passphrase string        `yaml:"passphrase"`
	TdMode     string        `yaml:"td_mode"`
	Timeout    time.Duration `yaml:"timeout"`
	// запасной буфер маржи перед отправкой ордера на открытие
	MarginBuffer     float64 `yaml:"margin_buffer"`
	LoadInstruments  bool    `yaml:"load_instruments"`
	FallbackLeverage float64 `yaml:"fallback_leverage"`
}

type PriceFeedConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxAge  time.Duration `yaml:"max_age"`
}

type RiskConfig struct {
	ATRPeriod       int     `yaml:"atr_period"`
	ATRFallbackBars int     `yaml:"atr_fallback_bars"`
	ATRMinPct       float64 `yaml:"atr_min_pct"`
	ATRMaxPct       float64 `yaml:"atr_max_pct"`

	StopATRMultiplier float64 `yaml:"stop_atr_multiplier"`
	StopMinPct        float64 `yaml:"stop_min_pct"`
	StopMaxPct        float64 `yaml:"stop_max_pct"`

	AllocationPct         float64 `yaml:"margin_per_position_pct"`
	FlagshipAllocationPct float64 `yaml:"flagship_margin_per_position_pct"`
	HighVolAllocationPct  float64 `yaml:"high_volatility_margin_per_position_pct"`
	MarginCapPct          float64 `yaml:"margin_cap_pct"`
	// расхождение доступной маржи (USDT), после которого верим бирже
	MarginTolerance float64 `yaml:"margin_tolerance"`
	// доля стартового капитала, доступная в paper-режиме
	PaperAvailableFraction float64 `yaml:"paper_available_fraction"`

	CandleBar         string `yaml:"candle_bar"`
	FallbackCandleBar string `yaml:"fallback_candle_bar"`
	CandleLimit       int    `yaml:"candle_limit"`
}

type ReversalConfig struct {
	MinR      float64       `yaml:"min_r"`
	MinPnLPct float64       `yaml:"min_pnl_pct"`
	MinHold   time.Duration `yaml:"min_hold"`
}

type LifecycleConfig struct {
	// доля текущего размера, закрываемая на уровне
	ExitFractions      map[string]float64 `yaml:"profit_levels"`
	TrailATRMultiplier float64            `yaml:"trail_atr_multiplier"`
	TrailBandPct       float64            `yaml:"trail_band_pct"`
	Reversal           ReversalConfig     `yaml:"reversal"`
}

type SafetyConfig struct {
	StartingEquity       float64       `yaml:"starting_equity"`
	KillSwitchPct        float64       `yaml:"equity_kill_switch_pct"`
	DailyLossPct         float64       `yaml:"daily_loss_limit_pct"`
	MaxOpenTrades        int           `yaml:"max_open_trades"`
	CheckInterval        time.Duration `yaml:"check_interval"`
	MaxMarginPct         float64       `yaml:"max_margin_pct"`
	MinNotional          float64       `yaml:"min_notional"`
	MaxConsecutiveLosses int           `yaml:"max_consecutive_losses"`
	LossCooldown         time.Duration `yaml:"loss_cooldown"`
	RiskPerTradePct      float64       `yaml:"risk_per_trade_pct"`
}

type ReconcileConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type RunnerConfig struct {
	CycleInterval time.Duration `yaml:"cycle_interval"`
	SignalBar     string        `yaml:"signal_bar"`
	SignalCandles int           `yaml:"signal_candles"`
	Concurrency   int           `yaml:"concurrency"`
}

type StrategyConfig struct {
	EMAShort       int     `yaml:"ema_short"`
	EMALong        int     `yaml:"ema_long"`
	RSIPeriod      int     `yaml:"rsi_period"`
	RSIOverbought  float64 `yaml:"rsi_overbought"`
	RSIOversold    float64 `yaml:"rsi_oversold"`
	DonchianPeriod int     `yaml:"donchian_period"`
	TrendEMAPeriod int     `yaml:"trend_ema_period"`
	MinChannelPct  float64 `yaml:"min_channel_pct"`
	// объём последней свечи к среднему, порог для memecoin-пробоя
	VolumeRatio float64 `yaml:"volume_ratio"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // file | postgres | redis
	Path       string `yaml:"path"`
	SafetyPath string `yaml:"safety_path"`
	Namespace  string `yaml:"namespace"`
}

type PortfolioConfig struct {
	JournalPath string   `yaml:"journal_path"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// распределённые блокировки по символу, когда движков несколько
	Locks   bool          `yaml:"locks"`
	LockTTL time.Duration `yaml:"lock_ttl"`
}

// Needed reports whether anything uses redis.
func (r RedisConfig) Needed(backend string) bool {
	return backend == "redis" || r.Locks
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	dir := getenvDefault(configDirENV, "configs")

	return Load(filepath.Join(dir, configFileName))
}

// Load decodes the file over Defaults, applies env overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		raw, err = tomlToYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode toml config: %w", err)
		}
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// toml goes through a generic map so one set of yaml tags serves both formats.
func tomlToYAML(raw []byte) ([]byte, error) {
	var m map[string]interface{}
	if _, err := toml.Decode(string(raw), &m); err != nil {
		return nil, err
	}
	return yaml.Marshal(m)
}

func applyEnv(cfg *Config) {
	cfg.OKX.APIKey = getenvDefault("OKX_API_KEY", cfg.OKX.APIKey)
	cfg.OKX.APISecret = getenvDefault("OKX_API_SECRET", cfg.OKX.APISecret)
	cfg.OKX.Passphrase = getenvDefault("OKX_PASSPHRASE", cfg.OKX.Passphrase)
	cfg.PaperTrading = boolFromEnv("PAPER_TRADING", cfg.PaperTrading)
	cfg.Safety.StartingEquity = floatFromEnv("STARTING_EQUITY", cfg.Safety.StartingEquity)

	if token := os.Getenv(tokenTelegramENV); token != "" {
		cfg.Telegram.Token = token
	}
	cfg.Telegram.ChatID = int64(intFromEnv("TELEGRAM_CHAT_ID", int(cfg.Telegram.ChatID)))

	if dsn := os.Getenv(databaseDSN); dsn != "" {
		cfg.DB = dsn
	}
	cfg.Redis.Addr = getenvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Store.Backend = getenvDefault("STORE_BACKEND", cfg.Store.Backend)

	cfg.Service.LogLevel = getenvDefault("LOG_LEVEL", cfg.Service.LogLevel)
	cfg.Health.Addr = getenvDefault("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Runner.CycleInterval = durationFromEnv("CYCLE_INTERVAL", cfg.Runner.CycleInterval.String())
}

// Validate ...
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: symbols list is empty")
	}
	switch c.Store.Backend {
	case "file", "postgres", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.DB == "" {
		return fmt.Errorf("config: store backend postgres needs db_dsn")
	}
	if c.Redis.Needed(c.Store.Backend) && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis store or locks need redis.addr")
	}

	fractions := map[string]float64{
		"risk.margin_per_position_pct":                 c.Risk.AllocationPct,
		"risk.flagship_margin_per_position_pct":        c.Risk.FlagshipAllocationPct,
		"risk.high_volatility_margin_per_position_pct": c.Risk.HighVolAllocationPct,
		"risk.margin_cap_pct":                          c.Risk.MarginCapPct,
		"safety.equity_kill_switch_pct":                c.Safety.KillSwitchPct,
		"safety.daily_loss_limit_pct":                  c.Safety.DailyLossPct,
		"safety.max_margin_pct":                        c.Safety.MaxMarginPct,
	}
	for name, v := range fractions {
		if v <= 0 || v > 1 {
			return fmt.Errorf("config: %s must be in (0,1], got %v", name, v)
		}
	}
	if c.Risk.FlagshipAllocationPct < c.Risk.AllocationPct || c.Risk.HighVolAllocationPct > c.Risk.AllocationPct {
		return fmt.Errorf("config: allocations must be high_volatility <= standard <= flagship, got %v / %v / %v",
			c.Risk.HighVolAllocationPct, c.Risk.AllocationPct, c.Risk.FlagshipAllocationPct)
	}
	for lvl, v := range c.Lifecycle.ExitFractions {
		if v <= 0 || v > 1 {
			return fmt.Errorf("config: lifecycle.profit_levels.%s must be in (0,1], got %v", lvl, v)
		}
	}
	if c.Risk.ATRPeriod < 1 {
		return fmt.Errorf("config: risk.atr_period must be >= 1")
	}
	if c.Risk.StopMinPct <= 0 || c.Risk.StopMaxPct < c.Risk.StopMinPct {
		return fmt.Errorf("config: bad stop band [%v, %v]", c.Risk.StopMinPct, c.Risk.StopMaxPct)
	}
	if c.Risk.ATRMinPct <= 0 || c.Risk.ATRMaxPct < c.Risk.ATRMinPct {
		return fmt.Errorf("config: bad atr band [%v, %v]", c.Risk.ATRMinPct, c.Risk.ATRMaxPct)
	}
	if c.Safety.StartingEquity <= 0 {
		return fmt.Errorf("config: safety.starting_equity must be > 0")
	}
	if c.Safety.MaxOpenTrades < 1 {
		return fmt.Errorf("config: safety.max_open_trades must be >= 1")
	}
	if c.Runner.CycleInterval <= 0 {
		return fmt.Errorf("config: runner.cycle_interval must be > 0")
	}
	return nil
}

// Symbol returns the table entry for instID with zero fields filled from DefaultSymbol.
func (c *Config) Symbol(instID string) SymbolConfig {
	sc, ok := c.SymbolTable[instID]
	if !ok {
		return c.DefaultSymbol
	}
	d := c.DefaultSymbol
	if sc.Class == "" {
		sc.Class = d.Class
	}
	if sc.LotSize <= 0 {
		sc.LotSize = d.LotSize
	}
	if sc.MinSize <= 0 {
		sc.MinSize = sc.LotSize
	}
	if sc.ContractMultiplier <= 0 {
		sc.ContractMultiplier = d.ContractMultiplier
	}
	if sc.MaxContracts <= 0 {
		sc.MaxContracts = d.MaxContracts
	}
	if sc.Leverage <= 0 {
		sc.Leverage = d.Leverage
	}
	if sc.SafetyLeverage <= 0 {
		sc.SafetyLeverage = d.SafetyLeverage
	}
	return sc
}

// ExitFraction for a profit level label, 0.25 when not configured.
func (c *Config) ExitFraction(level string) float64 {
	if v, ok := c.Lifecycle.ExitFractions[level]; ok && v > 0 {
		return v
	}
	return 0.25
}
