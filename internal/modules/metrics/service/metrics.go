// Package service holds the engine's Prometheus collectors.
//
//	engine_orders_total{mode,side,reduce_only}
//	engine_exits_total{reason,direction}
//	engine_open_positions
//	engine_equity_usdt
//	engine_emergency_stop
//	engine_errors_total{kind}
//	engine_cycle_duration_seconds
package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	reg *prometheus.Registry

	orders        *prometheus.CounterVec
	exits         *prometheus.CounterVec
	openPositions prometheus.Gauge
	equity        prometheus.Gauge
	emergencyStop prometheus.Gauge
	errors        *prometheus.CounterVec
	cycle         prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_orders_total",
				Help: "Orders submitted",
			},
			[]string{"mode", "side", "reduce_only"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_exits_total",
				Help: "Realized exits split by reason and direction",
			},
			[]string{"reason", "direction"},
		),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Positions in the ledger",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_equity_usdt",
			Help: "Last observed account equity",
		}),
		emergencyStop: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_emergency_stop",
			Help: "1 while the emergency stop is set",
		}),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		cycle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_cycle_duration_seconds",
			Help:    "Duration of one engine cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	m.reg.MustRegister(
		m.orders,
		m.exits,
		m.openPositions,
		m.equity,
		m.emergencyStop,
		m.errors,
		m.cycle,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Order(paper bool, side models.OrderSide, reduceOnly bool) {
	if m == nil {
		return
	}
	mode := "live"
	if paper {
		mode = "paper"
	}
	m.orders.WithLabelValues(mode, string(side), strconv.FormatBool(reduceOnly)).Inc()
}

func (m *Metrics) Exit(reason models.ExitReason, dir models.Direction) {
	if m == nil {
		return
	}
	m.exits.WithLabelValues(string(reason), string(dir)).Inc()
}

func (m *Metrics) OpenPositions(n int) {
	if m == nil {
		return
	}
	m.openPositions.Set(float64(n))
}

func (m *Metrics) Equity(v float64) {
	if m == nil {
		return
	}
	m.equity.Set(v)
}

func (m *Metrics) EmergencyStop(on bool) {
	if m == nil {
		return
	}
	v := 0.0
	if on {
		v = 1
	}
	m.emergencyStop.Set(v)
}

// Error counts err by its apperr kind.
func (m *Metrics) Error(err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(string(apperr.KindOf(err))).Inc()
}

func (m *Metrics) Cycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycle.Observe(d.Seconds())
}
