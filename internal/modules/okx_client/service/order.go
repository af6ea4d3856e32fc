package service

import (
	"context"
	"fmt"
	"net/http"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
)

// OKX sCodes that mean the account cannot fund the order.
var marginRejectCodes = map[string]bool{
	"51008": true, // insufficient balance
	"51004": true, // exceeds tier limit at current leverage
	"51010": true, // account mode does not support
	"51020": true, // order amount below minimum / above available
	"51131": true, // insufficient balance
}

// SubmitOrder sends a market order. Opening orders are checked against
// available margin first and rejected with KindMarginRejected without touching the network.
func (c *Client) SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	const op = "okx.SubmitOrder"

	if req.Size <= 0 {
		return models.OrderResult{}, apperr.Newf(apperr.KindOrderRejected, op, req.Symbol, "size <= 0")
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return models.OrderResult{}, apperr.Newf(apperr.KindOrderRejected, op, req.Symbol, "unsupported side %q", req.Side)
	}

	if !req.ReduceOnly {
		if err := c.checkMargin(ctx, req); err != nil {
			return models.OrderResult{}, err
		}
	}

	body := map[string]any{
		"instId":  req.Symbol,
		"tdMode":  c.tdMode,
		"side":    string(req.Side),
		"posSide": string(req.PosSide()),
		"ordType": "market",
		"sz":      formatSize(req.Size),
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}

	env, err := call[orderRow](ctx, c, http.MethodPost, "/api/v5/trade/order", nil, body, true)
	if err != nil {
		return models.OrderResult{}, apperr.New(apperr.KindOrderRejected, op, req.Symbol, err)
	}

	if len(env.Data) == 0 {
		if env.Code != "0" {
			return models.OrderResult{}, apperr.Newf(apperr.KindOrderRejected, op, req.Symbol,
				"code=%s msg=%s", env.Code, env.Msg)
		}
		return models.OrderResult{}, apperr.Newf(apperr.KindOrderRejected, op, req.Symbol, "empty data")
	}

	d := env.Data[0]
	if env.Code != "0" || d.SCode != "0" {
		kind := apperr.KindOrderRejected
		if marginRejectCodes[d.SCode] {
			kind = apperr.KindMarginRejected
		}
		return models.OrderResult{}, apperr.Newf(kind, op, req.Symbol,
			"code=%s msg=%s sCode=%s sMsg=%s", env.Code, env.Msg, d.SCode, d.SMsg)
	}
	return models.OrderResult{OrderID: d.OrdID}, nil
}

func (c *Client) checkMargin(ctx context.Context, req models.OrderRequest) error {
	const op = "okx.SubmitOrder"
	if req.RefPrice <= 0 || req.Leverage <= 0 {
		return nil
	}

	required := req.Notional() / req.Leverage * (1 + c.marginBuffer)
	available, err := c.GetAvailableMargin(ctx)
	if err != nil {
		return apperr.New(apperr.KindMarginRejected, op, req.Symbol, fmt.Errorf("margin check: %w", err))
	}
	if required > available {
		return apperr.Newf(apperr.KindMarginRejected, op, req.Symbol,
			"required margin %.2f exceeds available %.2f", required, available)
	}
	return nil
}
