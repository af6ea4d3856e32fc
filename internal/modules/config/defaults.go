package config

import "time"

const (
	ClassFlagship       = "flagship"
	ClassHighVolatility = "high_volatility"
	ClassStandard       = "standard"
)

// Defaults is the configuration used before the file is decoded on top of it.
func Defaults() Config {
	var c Config

	c.Service.Name = "position-engine"
	c.Service.LogLevel = "info"
	c.PaperTrading = true

	c.Symbols = []string{"BTC-USDT-SWAP", "ETH-USDT-SWAP", "SOL-USDT-SWAP"}
	c.SymbolTable = defaultSymbolTable()
	c.DefaultSymbol = SymbolConfig{
		Class:              ClassStandard,
		LotSize:            0.1,
		MinSize:            0.1,
		ContractMultiplier: 1,
		MaxContracts:       10000,
		Leverage:           10,
		SafetyLeverage:     10,
	}

	c.OKX = OKXConfig{
		BaseURL:          "https://www.okx.com",
		WSURL:            "wss://ws.okx.com:8443/ws/v5/public",
		TdMode:           "cross",
		Timeout:          15 * time.Second,
		MarginBuffer:     0.05,
		LoadInstruments:  true,
		FallbackLeverage: 10,
	}
	c.PriceFeed = PriceFeedConfig{Enabled: false, MaxAge: 30 * time.Second}

	c.Risk = RiskConfig{
		ATRPeriod:              14,
		ATRFallbackBars:        5,
		ATRMinPct:              0.005,
		ATRMaxPct:              0.05,
		StopATRMultiplier:      2,
		StopMinPct:             0.005,
		StopMaxPct:             0.08,
		AllocationPct:          0.10,
		FlagshipAllocationPct:  0.15,
		HighVolAllocationPct:   0.025,
		MarginCapPct:           0.25,
		MarginTolerance:        1,
		PaperAvailableFraction: 0.8,
		CandleBar:              "1H",
		FallbackCandleBar:      "15m",
		CandleLimit:            100,
	}

	c.Lifecycle = LifecycleConfig{
		ExitFractions: map[string]float64{
			"1R": 0.25,
			"2R": 0.25,
			"3R": 0.25,
			"4R": 0.25,
		},
		TrailATRMultiplier: 2,
		TrailBandPct:       0.5,
		Reversal: ReversalConfig{
			MinR:      0.5,
			MinPnLPct: 2,
			MinHold:   2 * time.Hour,
		},
	}

	c.Safety = SafetyConfig{
		StartingEquity:       10000,
		KillSwitchPct:        0.5,
		DailyLossPct:         0.05,
		MaxOpenTrades:        5,
		CheckInterval:        5 * time.Minute,
		MaxMarginPct:         0.25,
		MinNotional:          10,
		MaxConsecutiveLosses: 3,
		LossCooldown:         time.Hour,
		RiskPerTradePct:      0.02,
	}

	c.Reconcile.Interval = 5 * time.Minute

	c.Runner = RunnerConfig{
		CycleInterval: 15 * time.Minute,
		SignalBar:     "15m",
		SignalCandles: 100,
		Concurrency:   4,
	}

	c.Strategy = StrategyConfig{
		EMAShort:       9,
		EMALong:        21,
		RSIPeriod:      14,
		RSIOverbought:  70,
		RSIOversold:    30,
		DonchianPeriod: 20,
		TrendEMAPeriod: 50,
		MinChannelPct:  0.004,
		VolumeRatio:    1.5,
	}

	c.Store = StoreConfig{
		Backend:    "file",
		Path:       "data/active_positions.json",
		SafetyPath: "data/safety_state.json",
		Namespace:  "position_engine",
	}
	c.Portfolio.JournalPath = "data/trades_history.json"
	c.Portfolio.S3.Prefix = "trades/"
	c.Portfolio.S3.Region = "us-east-1"

	c.Redis.LockTTL = 30 * time.Second
	c.Health.Addr = ":8080"
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831

	return c
}

func defaultSymbolTable() map[string]SymbolConfig {
	std := func(mult, maxc, lot float64) SymbolConfig {
		return SymbolConfig{
			Class:              ClassStandard,
			LotSize:            lot,
			MinSize:            lot,
			ContractMultiplier: mult,
			MaxContracts:       maxc,
			Leverage:           10,
			SafetyLeverage:     10,
		}
	}

	t := map[string]SymbolConfig{
		"BTC-USDT-SWAP":   std(0.01, 100000, 0.01),
		"ETH-USDT-SWAP":   std(0.1, 100000, 0.01),
		"SOL-USDT-SWAP":   std(1, 50000, 0.1),
		"XRP-USDT-SWAP":   std(100, 10000, 0.1),
		"LTC-USDT-SWAP":   std(1, 50000, 1),
		"ADA-USDT-SWAP":   std(100, 10000, 1),
		"AVAX-USDT-SWAP":  std(1, 50000, 0.1),
		"LINK-USDT-SWAP":  std(1, 50000, 0.1),
		"NEAR-USDT-SWAP":  std(10, 50000, 0.1),
		"BONK-USDT-SWAP":  std(1e6, 100, 10),
		"PEPE-USDT-SWAP":  std(1e6, 100, 100),
		"PENGU-USDT-SWAP": std(1000, 1000, 1),
	}

	btc := t["BTC-USDT-SWAP"]
	btc.Class = ClassFlagship
	btc.SafetyLeverage = 20
	t["BTC-USDT-SWAP"] = btc

	eth := t["ETH-USDT-SWAP"]
	eth.SafetyLeverage = 20
	t["ETH-USDT-SWAP"] = eth

	sol := t["SOL-USDT-SWAP"]
	sol.SafetyLeverage = 15
	t["SOL-USDT-SWAP"] = sol

	for _, s := range []string{"BONK-USDT-SWAP", "PEPE-USDT-SWAP", "PENGU-USDT-SWAP"} {
		e := t[s]
		e.Class = ClassHighVolatility
		t[s] = e
	}
	return t
}
