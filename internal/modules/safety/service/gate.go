package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	metrics "position_engine/internal/modules/metrics/service"
	"position_engine/internal/notify"
	"position_engine/pkg/logger"
)

type Account interface {
	GetAccountEquity(ctx context.Context) (float64, error)
	GetMarginInfo(ctx context.Context) (models.MarginInfo, error)
}

type StateStore interface {
	LoadSafety(ctx context.Context) (models.SafetyState, bool, error)
	SaveSafety(ctx context.Context, st models.SafetyState) error
}

type SpecSource interface {
	Spec(symbol string) models.SymbolSpec
}

const (
	ReasonKillSwitch = "equity kill switch"
	ReasonDailyLoss  = "daily loss limit"
)

// Gate is the account-level circuit breaker. The emergency stop is sticky:
// only ResetEmergencyStop clears it.
type Gate struct {
	cfg     config.SafetyConfig
	account Account
	store   StateStore
	specs   SpecSource
	notify  notify.Notifier
	metrics *metrics.Metrics
	nowFn   func() time.Time

	mu    sync.Mutex
	state models.SafetyState
}

func NewGate(
	cfg *config.Config,
	account Account,
	store StateStore,
	specs SpecSource,
	n notify.Notifier,
	m *metrics.Metrics,
) *Gate {
	if n == nil {
		n = notify.NewLog()
	}
	return &Gate{
		cfg:     cfg.Safety,
		account: account,
		store:   store,
		specs:   specs,
		notify:  n,
		metrics: m,
		nowFn:   time.Now,
		state:   models.SafetyState{StartingEquity: cfg.Safety.StartingEquity},
	}
}

// Load restores persisted state; a missing record keeps the configured baseline.
func (g *Gate) Load(ctx context.Context) error {
	st, ok, err := g.store.LoadSafety(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if ok {
		if st.StartingEquity <= 0 {
			st.StartingEquity = g.cfg.StartingEquity
		}
		g.state = st
	}
	g.metrics.EmergencyStop(g.state.EmergencyStop)

	logger.Info("safety: baseline %.2f, kill switch %.0f%% ($%.0f), daily limit %.0f%% ($%.0f), emergency=%v",
		g.state.StartingEquity,
		g.cfg.KillSwitchPct*100, g.state.StartingEquity*g.cfg.KillSwitchPct,
		g.cfg.DailyLossPct*100, g.state.StartingEquity*g.cfg.DailyLossPct,
		g.state.EmergencyStop)
	if g.state.EmergencyStop {
		logger.Warn("safety: emergency stop is set since %s (%s)", g.state.TriggeredAt.Format(time.RFC3339), g.state.EmergencyReason)
	}
	return nil
}

// ShouldAllowTrading is consulted before every entry decision.
// An equity fetch error fails open; a confirmed breach trips the sticky stop.
func (g *Gate) ShouldAllowTrading(ctx context.Context, openCount int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.EmergencyStop {
		logger.Warn("safety: emergency stop is active, no new trades")
		return false
	}

	now := g.nowFn()
	if g.state.LastEquityCheck.IsZero() || now.Sub(g.state.LastEquityCheck) >= g.cfg.CheckInterval {
		if !g.checkEquityLocked(ctx, now) {
			return false
		}
	}

	if now.Before(g.state.CooldownUntil) {
		logger.Warn("safety: cooling off after %d losses until %s",
			g.state.ConsecutiveLosses, g.state.CooldownUntil.Format(time.RFC3339))
		return false
	}

	if g.cfg.MaxOpenTrades > 0 && openCount >= g.cfg.MaxOpenTrades {
		logger.Warn("safety: maximum open trades reached: %d/%d", openCount, g.cfg.MaxOpenTrades)
		return false
	}
	return true
}

func (g *Gate) checkEquityLocked(ctx context.Context, now time.Time) bool {
	equity, err := g.account.GetAccountEquity(ctx)
	if err != nil {
		err = apperr.New(apperr.KindAccountData, "safety.checkEquity", "", err)
		g.metrics.Error(err)
		logger.Error("safety: equity check failed, allowing trading: %v", err)
		g.state.LastEquityCheck = now
		return true
	}

	g.state.LastEquityCheck = now
	g.state.LastEquity = equity
	g.metrics.Equity(equity)

	base := g.state.StartingEquity
	killAt := base * g.cfg.KillSwitchPct
	dailyLimit := base * g.cfg.DailyLossPct

	switch {
	case equity <= killAt:
		g.tripLocked(ctx, now, ReasonKillSwitch,
			fmt.Sprintf("equity $%.2f <= %.0f%% threshold ($%.2f)", equity, g.cfg.KillSwitchPct*100, killAt))
		return false
	case base-equity >= dailyLimit:
		g.tripLocked(ctx, now, ReasonDailyLoss,
			fmt.Sprintf("loss $%.2f >= %.0f%% limit ($%.2f)", base-equity, g.cfg.DailyLossPct*100, dailyLimit))
		return false
	}

	g.persistLocked(ctx)
	return true
}

func (g *Gate) tripLocked(ctx context.Context, now time.Time, reason, detail string) {
	g.state.EmergencyStop = true
	g.state.EmergencyReason = reason
	g.state.TriggeredAt = now
	g.metrics.EmergencyStop(true)
	g.persistLocked(ctx)

	logger.Error("safety: 🚨 %s triggered: %s", reason, detail)
	g.notify.Sendf("🚨 %s: %s. New entries halted until manual reset.", reason, detail)
}

func (g *Gate) persistLocked(ctx context.Context) {
	if g.store == nil {
		return
	}
	if err := g.store.SaveSafety(ctx, g.state); err != nil {
		g.metrics.Error(err)
		logger.Error("safety: persist state: %v", err)
	}
}

// ValidateTradeSize rejects a sized trade whose margin exceeds the per-position
// share of available margin, or whose notional is under the minimum.
// A margin fetch error rejects.
func (g *Gate) ValidateTradeSize(ctx context.Context, symbol string, size, price float64) error {
	const op = "safety.ValidateTradeSize"
	log := logger.Symbol(symbol)

	info, err := g.account.GetMarginInfo(ctx)
	if err != nil {
		return apperr.New(apperr.KindAccountData, op, symbol, err)
	}

	spec := g.specs.Spec(symbol)
	mult := spec.ContractMultiplier
	if mult <= 0 {
		mult = 1
	}
	lev := spec.SafetyLeverage
	if lev <= 0 {
		lev = 10
	}

	notional := size * price * mult
	margin := notional / lev
	maxMargin := info.Available * g.cfg.MaxMarginPct

	if margin > maxMargin {
		return apperr.Newf(apperr.KindSafetyRejection, op, symbol,
			"margin requirement $%.2f > $%.2f (%.0f%% of available)", margin, maxMargin, g.cfg.MaxMarginPct*100)
	}
	if notional < g.cfg.MinNotional {
		return apperr.Newf(apperr.KindSafetyRejection, op, symbol,
			"notional $%.2f below minimum $%.2f", notional, g.cfg.MinNotional)
	}

	log.Info("margin validation passed",
		zap.Float64("margin", margin), zap.Float64("available", info.Available), zap.Float64("notional", notional))
	return nil
}

// ResetEmergencyStop is the operator action; it clears the flag unconditionally.
func (g *Gate) ResetEmergencyStop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.EmergencyStop = false
	g.state.EmergencyReason = ""
	g.state.TriggeredAt = time.Time{}
	g.metrics.EmergencyStop(false)
	logger.Info("safety: emergency stop reset manually")

	if g.store == nil {
		return nil
	}
	return g.store.SaveSafety(ctx, g.state)
}

// RecordTradeResult tracks consecutive losses. Reaching the limit opens a
// cooling-off window; only a strictly profitable close resets the counter,
// a breakeven stop counts as a loss.
func (g *Gate) RecordTradeResult(ctx context.Context, pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pnl > 0 {
		g.state.ConsecutiveLosses = 0
		g.persistLocked(ctx)
		return
	}

	g.state.ConsecutiveLosses++
	logger.Warn("safety: consecutive losses: %d", g.state.ConsecutiveLosses)
	if g.cfg.MaxConsecutiveLosses > 0 && g.state.ConsecutiveLosses >= g.cfg.MaxConsecutiveLosses {
		g.state.CooldownUntil = g.nowFn().Add(g.cfg.LossCooldown)
		logger.Warn("safety: cooling off until %s", g.state.CooldownUntil.Format(time.RFC3339))
		g.notify.Sendf("🔄 %d losses in a row, entries paused until %s",
			g.state.ConsecutiveLosses, g.state.CooldownUntil.Format("15:04 MST"))
	}
	g.persistLocked(ctx)
}

// UpdateStartingEquity moves the baseline both thresholds are computed from.
func (g *Gate) UpdateStartingEquity(ctx context.Context, equity float64) error {
	if equity <= 0 || math.IsNaN(equity) {
		return apperr.Newf(apperr.KindConfig, "safety.UpdateStartingEquity", "", "bad equity %v", equity)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	old := g.state.StartingEquity
	g.state.StartingEquity = equity
	logger.Info("safety: starting equity %.0f -> %.0f, kill switch $%.0f, daily limit $%.0f",
		old, equity, equity*g.cfg.KillSwitchPct, equity*g.cfg.DailyLossPct)

	if g.store == nil {
		return nil
	}
	return g.store.SaveSafety(ctx, g.state)
}

// SafePositionSize sizes by fixed risk: risk-per-trade share of equity over the
// stop distance, notional capped at 10x the risk amount. Returns 0 when the
// result does not pass ValidateTradeSize.
func (g *Gate) SafePositionSize(ctx context.Context, symbol string, entry, stop float64) (float64, error) {
	const op = "safety.SafePositionSize"

	diff := math.Abs(entry - stop)
	if diff == 0 || entry <= 0 {
		return 0, apperr.Newf(apperr.KindSizing, op, symbol, "no stop distance")
	}

	equity, err := g.account.GetAccountEquity(ctx)
	if err != nil {
		return 0, apperr.New(apperr.KindAccountData, op, symbol, err)
	}

	risk := equity * g.cfg.RiskPerTradePct
	size := risk / diff
	if maxSize := risk * 10 / entry; size > maxSize {
		logger.Symbol(symbol).Warn("safe size capped", zap.Float64("size", maxSize))
		size = maxSize
	}

	if err := g.ValidateTradeSize(ctx, symbol, size, entry); err != nil {
		return 0, err
	}
	return size, nil
}

// State returns a copy of the current state.
func (g *Gate) State() models.SafetyState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) StatusLine() string {
	st := g.State()
	if st.EmergencyStop {
		return fmt.Sprintf("🚨 emergency stop: %s since %s", st.EmergencyReason, st.TriggeredAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("✅ trading allowed | baseline $%.0f | last equity $%.2f | losses in a row %d",
		st.StartingEquity, st.LastEquity, st.ConsecutiveLosses)
}
