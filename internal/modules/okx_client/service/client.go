package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"position_engine/internal/modules/config"
)

const defaultBaseURL = "https://www.okx.com"

// PriceSource is a live last-price cache, normally the websocket ticker feed.
type PriceSource interface {
	LastPrice(symbol string) (price float64, at time.Time, ok bool)
}

// Client is the OKX v5 REST adapter for USDT swaps.
type Client struct {
	http    *http.Client
	baseURL string

	apiKey    string
	apiSecret string
	passph    string

	tdMode       string
	marginBuffer float64

	mu       sync.RWMutex
	prices   PriceSource
	maxAge   time.Duration
	nowFn    func() time.Time
	tsFormat string
}

func NewClient(cfg *config.Config) *Client {
	base := strings.TrimRight(cfg.OKX.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.OKX.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tdMode := cfg.OKX.TdMode
	if tdMode == "" {
		tdMode = "cross"
	}

	return &Client{
		http:         &http.Client{Timeout: timeout},
		baseURL:      base,
		apiKey:       cfg.OKX.APIKey,
		apiSecret:    cfg.OKX.APISecret,
		passph:       cfg.OKX.Passphrase,
		tdMode:       tdMode,
		marginBuffer: cfg.OKX.MarginBuffer,
		maxAge:       cfg.PriceFeed.MaxAge,
		nowFn:        time.Now,
		tsFormat:     "2006-01-02T15:04:05.000Z",
	}
}

// SetPriceSource plugs the websocket cache in front of the REST ticker.
func (c *Client) SetPriceSource(p PriceSource) {
	c.mu.Lock()
	c.prices = p
	c.mu.Unlock()
}

func (c *Client) priceSource() PriceSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prices
}

func (c *Client) sign(ts, method, requestPath, body string) string {
	msg := ts + strings.ToUpper(method) + requestPath + body
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// envelope is the common OKX v5 response shape.
type envelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

func (e *envelope[T]) err(op string) error {
	if e.Code != "0" {
		return fmt.Errorf("%s okx error: code=%s msg=%s", op, e.Code, e.Msg)
	}
	return nil
}

// call performs one request and decodes the envelope. A non-zero OKX code is
// not an error here; callers inspect it because order rejections carry sCode in data.
func call[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any, signed bool) (*envelope[T], error) {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s marshal: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s new request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		ts := c.nowFn().UTC().Format(c.tsFormat)
		req.Header.Set("OK-ACCESS-KEY", c.apiKey)
		req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, requestPath, string(payload)))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.passph)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s do: %w", path, err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s http %d: %s", path, resp.StatusCode, string(rb))
	}

	var env envelope[T]
	if err := sonic.Unmarshal(rb, &env); err != nil {
		return nil, fmt.Errorf("%s decode: %w", path, err)
	}
	return &env, nil
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
