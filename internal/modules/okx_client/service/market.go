package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"position_engine/internal/apperr"
	"position_engine/internal/helper"
	"position_engine/internal/models"
)

type tickerRow struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	Ts     string `json:"ts"`
}

// GetTicker returns the last traded price, from the live cache when it is fresh enough.
func (c *Client) GetTicker(ctx context.Context, symbol string) (float64, error) {
	if src := c.priceSource(); src != nil && c.maxAge > 0 {
		if px, at, ok := src.LastPrice(symbol); ok && px > 0 && c.nowFn().Sub(at) <= c.maxAge {
			return px, nil
		}
	}

	env, err := call[tickerRow](ctx, c, http.MethodGet, "/api/v5/market/ticker",
		url.Values{"instId": {symbol}}, nil, false)
	if err != nil {
		return 0, apperr.New(apperr.KindDataUnavailable, "okx.GetTicker", symbol, err)
	}
	if err := env.err("ticker"); err != nil {
		return 0, apperr.New(apperr.KindDataUnavailable, "okx.GetTicker", symbol, err)
	}
	if len(env.Data) == 0 {
		return 0, apperr.Newf(apperr.KindDataUnavailable, "okx.GetTicker", symbol, "empty ticker")
	}
	px := parseFloat(env.Data[0].Last)
	if px <= 0 {
		return 0, apperr.Newf(apperr.KindDataUnavailable, "okx.GetTicker", symbol, "last <= 0: %q", env.Data[0].Last)
	}
	return px, nil
}

// GetCandles returns up to limit bars, oldest first.
// OKX rows are [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm], newest first.
func (c *Client) GetCandles(ctx context.Context, symbol, bar string, limit int) ([]models.Candle, error) {
	q := url.Values{
		"instId": {symbol},
		"bar":    {helper.NormTF(bar)},
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	env, err := call[[]string](ctx, c, http.MethodGet, "/api/v5/market/candles", q, nil, false)
	if err != nil {
		return nil, apperr.New(apperr.KindDataUnavailable, "okx.GetCandles", symbol, err)
	}
	if err := env.err("candles"); err != nil {
		return nil, apperr.New(apperr.KindDataUnavailable, "okx.GetCandles", symbol, err)
	}
	if len(env.Data) == 0 {
		return nil, apperr.Newf(apperr.KindDataUnavailable, "okx.GetCandles", symbol, "no candles for bar %s", bar)
	}

	out := make([]models.Candle, 0, len(env.Data))
	for i := len(env.Data) - 1; i >= 0; i-- {
		k, err := parseCandle(env.Data[i])
		if err != nil {
			return nil, apperr.New(apperr.KindDataUnavailable, "okx.GetCandles", symbol, err)
		}
		out = append(out, k)
	}
	return out, nil
}

func parseCandle(row []string) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("candle row too short: %v", row)
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("candle ts %q: %w", row[0], err)
	}
	k := models.Candle{
		Start:     time.UnixMilli(ms).UTC(),
		Open:      parseFloat(row[1]),
		High:      parseFloat(row[2]),
		Low:       parseFloat(row[3]),
		Close:     parseFloat(row[4]),
		Volume:    parseFloat(row[5]),
		Confirmed: true,
	}
	if len(row) > 8 {
		k.Confirmed = row[8] == "1"
	}
	return k, nil
}
