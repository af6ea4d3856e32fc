package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"position_engine/internal/modules/config"
	"position_engine/pkg/logger"
)

type quote struct {
	px float64
	at time.Time
}

// PriceFeed keeps the last traded price per instrument from the public tickers channel.
type PriceFeed struct {
	url      string
	symbols  []string
	wsDialer *websocket.Dialer

	mu   sync.RWMutex
	last map[string]quote

	connected atomic.Bool
	nowFn     func() time.Time
}

func NewPriceFeed(cfg *config.Config) *PriceFeed {
	return &PriceFeed{
		url:      cfg.OKX.WSURL,
		symbols:  append([]string(nil), cfg.Symbols...),
		wsDialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		last:     make(map[string]quote, len(cfg.Symbols)),
		nowFn:    time.Now,
	}
}

// LastPrice implements the REST client's PriceSource.
func (f *PriceFeed) LastPrice(symbol string) (float64, time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.last[symbol]
	return q.px, q.at, ok
}

func (f *PriceFeed) Connected() bool { return f.connected.Load() }

// Run connects, subscribes and reconnects until ctx is done.
func (f *PriceFeed) Run(ctx context.Context) {
	if len(f.symbols) == 0 {
		return
	}

	args := make([]map[string]string, 0, len(f.symbols))
	for _, id := range f.symbols {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  id,
		})
	}

	for {
		if err := f.session(ctx, args); err != nil {
			logger.Warn("[WS] tickers: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (f *PriceFeed) session(ctx context.Context, args []map[string]string) error {
	logger.Info("[WS] connect tickers %d symbols", len(args))
	conn, _, err := f.wsDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	f.connected.Store(true)
	defer f.connected.Store(false)

	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
		return err
	}

	// keepalive: OKX рвёт соединение без ping в течение 30s
	var writeMu sync.Mutex
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(20 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				writeMu.Lock()
				_ = conn.Close()
				writeMu.Unlock()
				return
			case <-done:
				return
			case <-t.C:
				writeMu.Lock()
				_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				writeMu.Unlock()
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		f.handleFrame(msg)
	}
}

type tickerFrame struct {
	Event string `json:"event"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
		Ts     string `json:"ts"`
	} `json:"data"`
}

// handleFrame applies one message and returns how many prices it updated.
func (f *PriceFeed) handleFrame(msg []byte) int {
	if string(msg) == "pong" {
		return 0
	}

	var frame tickerFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		return 0
	}
	if frame.Event == "error" {
		logger.Warn("[WS] tickers error: %s", frame.Msg)
		return 0
	}
	if frame.Arg.Channel != "tickers" || len(frame.Data) == 0 {
		return 0
	}

	now := f.nowFn()
	n := 0
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range frame.Data {
		px := parseFloat(d.Last)
		if px <= 0 || d.InstID == "" {
			continue
		}
		f.last[d.InstID] = quote{px: px, at: now}
		n++
	}
	return n
}
