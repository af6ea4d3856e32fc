package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
)

// GetMarginInfo reads the USDT balance: available, total equity and frozen margin.
func (c *Client) GetMarginInfo(ctx context.Context) (models.MarginInfo, error) {
	env, err := call[balanceRow](ctx, c, http.MethodGet, "/api/v5/account/balance",
		url.Values{"ccy": {"USDT"}}, nil, true)
	if err != nil {
		return models.MarginInfo{}, apperr.New(apperr.KindAccountData, "okx.GetMarginInfo", "", err)
	}
	if err := env.err("balance"); err != nil {
		return models.MarginInfo{}, apperr.New(apperr.KindAccountData, "okx.GetMarginInfo", "", err)
	}
	if len(env.Data) == 0 {
		return models.MarginInfo{}, apperr.Newf(apperr.KindAccountData, "okx.GetMarginInfo", "", "empty balance")
	}

	row := env.Data[0]
	info := models.MarginInfo{
		TotalEquity: parseFloat(row.TotalEq),
		UsedMargin:  parseFloat(row.Imr),
	}
	for _, d := range row.Details {
		if !strings.EqualFold(d.Ccy, "USDT") {
			continue
		}
		info.Available = parseFloat(d.AvailEq)
		if info.Available == 0 {
			info.Available = parseFloat(d.AvailBal)
		}
		if frozen := parseFloat(d.FrozenBal); frozen > 0 {
			info.UsedMargin = frozen
		}
		if info.TotalEquity == 0 {
			info.TotalEquity = parseFloat(d.Eq)
		}
	}
	return info, nil
}

func (c *Client) GetAvailableMargin(ctx context.Context) (float64, error) {
	info, err := c.GetMarginInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Available, nil
}

func (c *Client) GetAccountEquity(ctx context.Context) (float64, error) {
	info, err := c.GetMarginInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.TotalEquity, nil
}

// GetPositions lists open swap positions. Zero-size rows are dropped.
func (c *Client) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	env, err := call[positionRow](ctx, c, http.MethodGet, "/api/v5/account/positions",
		url.Values{"instType": {"SWAP"}}, nil, true)
	if err != nil {
		return nil, apperr.New(apperr.KindAccountData, "okx.GetPositions", "", err)
	}
	if err := env.err("positions"); err != nil {
		return nil, apperr.New(apperr.KindAccountData, "okx.GetPositions", "", err)
	}

	res := make([]models.ExchangePosition, 0, len(env.Data))
	for _, d := range env.Data {
		if p, ok := toExchangePosition(d); ok {
			res = append(res, p)
		}
	}
	return res, nil
}

func toExchangePosition(d positionRow) (models.ExchangePosition, bool) {
	// размер позиции (контракты); в net-режиме знак задаёт направление
	pos := parseFloat(d.Pos)
	if pos == 0 {
		return models.ExchangePosition{}, false
	}

	var dir models.Direction
	switch d.PosSide {
	case "long":
		dir = models.DirectionLong
	case "short":
		dir = models.DirectionShort
	default:
		dir = models.DirectionLong
		if pos < 0 {
			dir = models.DirectionShort
		}
	}
	if pos < 0 {
		pos = -pos
	}

	lastPx := parseFloat(d.Last)
	if lastPx == 0 {
		lastPx = parseFloat(d.MarkPx)
	}
	upl := parseFloat(d.UplLastPx)
	if upl == 0 {
		upl = parseFloat(d.Upl)
	}
	uplRatio := parseFloat(d.UplRatioLastPx)
	if uplRatio == 0 {
		uplRatio = parseFloat(d.UplRatio)
	}
	imr := parseFloat(d.Imr)
	if imr == 0 {
		imr = parseFloat(d.Margin)
	}
	lev, _ := strconv.Atoi(d.Lever)

	return models.ExchangePosition{
		Symbol:             d.InstID,
		Direction:          dir,
		Size:               pos,
		AvgPrice:           parseFloat(d.AvgPx),
		LastPrice:          lastPx,
		UnrealizedPnL:      upl,
		UnrealizedPnLRatio: uplRatio,
		InitialMargin:      imr,
		Leverage:           lev,
	}, true
}
