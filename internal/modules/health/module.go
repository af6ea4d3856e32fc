package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/fx"

	"position_engine/internal/modules/config"
	"position_engine/internal/modules/health/service"
	ledger "position_engine/internal/modules/ledger/service"
	metrics "position_engine/internal/modules/metrics/service"
	okxws "position_engine/internal/modules/okx_websocket/service"
	safety "position_engine/internal/modules/safety/service"
	"position_engine/pkg/logger"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	if cfg.Health.Addr == "" {
		return Config{Addr: ":8080"}
	}
	return Config{Addr: cfg.Health.Addr}
}

// Probes is what /healthz reports besides the process state.
type Probes struct {
	fx.In

	State   *service.State
	Gate    *safety.Gate
	Ledger  *ledger.Ledger
	Feed    *okxws.PriceFeed
	Metrics *metrics.Metrics
	Config  *config.Config
}

func NewMux(p Probes) *http.ServeMux {
	state := p.State
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: стартовая синхронизация прошла
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		safetyState := p.Gate.State()
		resp := map[string]any{
			"ready":           state.Ready(),
			"paper":           p.Config.PaperTrading,
			"uptimeSec":       int64(state.Uptime().Seconds()),
			"cycles":          state.Cycles(),
			"lastCycleErrors": state.LastCycleErrors(),
			"lastCycleUnix": func() int64 {
				t := state.LastCycle()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
			"openPositions":   p.Ledger.Len(),
			"emergencyStop":   safetyState.EmergencyStop,
			"emergencyReason": safetyState.EmergencyReason,
			"priceFeed":       p.Config.PriceFeed.Enabled && p.Feed.Connected(),
		}
		body, err := sonic.Marshal(resp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	mux.Handle("/metrics", p.Metrics.Handler())

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info("[HTTP] health on %s", cfg.Addr)
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
