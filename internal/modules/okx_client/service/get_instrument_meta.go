package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
)

// GetInstrumentMeta loads the swap contract spec for instID.
func (c *Client) GetInstrumentMeta(ctx context.Context, instID string) (models.Instrument, error) {
	const op = "okx.GetInstrumentMeta"

	env, err := call[instrumentRow](ctx, c, http.MethodGet, "/api/v5/public/instruments",
		url.Values{"instType": {"SWAP"}, "instId": {instID}}, nil, false)
	if err != nil {
		return models.Instrument{}, apperr.New(apperr.KindDataUnavailable, op, instID, err)
	}
	if err := env.err("instruments"); err != nil {
		return models.Instrument{}, apperr.New(apperr.KindDataUnavailable, op, instID, err)
	}
	if len(env.Data) == 0 {
		return models.Instrument{}, apperr.Newf(apperr.KindDataUnavailable, op, instID, "instrument not found")
	}

	inst := env.Data[0]
	if inst.State != "" && inst.State != "live" {
		return models.Instrument{}, apperr.Newf(apperr.KindDataUnavailable, op, instID, "not live: state=%s", inst.State)
	}

	parsePos := func(name, s string) (float64, error) {
		if s == "" {
			return 0, fmt.Errorf("%s empty", name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("%s parse: %v (%q)", name, err, s)
		}
		return v, nil
	}

	lotSz, err := parsePos("lotSz", inst.LotSz)
	if err != nil {
		return models.Instrument{}, apperr.New(apperr.KindDataUnavailable, op, instID, err)
	}
	minSz, err := parsePos("minSz", inst.MinSz)
	if err != nil {
		return models.Instrument{}, apperr.New(apperr.KindDataUnavailable, op, instID, err)
	}
	tickSz, err := parsePos("tickSz", inst.TickSz)
	if err != nil {
		return models.Instrument{}, apperr.New(apperr.KindDataUnavailable, op, instID, err)
	}
	ctVal, err := parsePos("ctVal", inst.CtVal)
	if err != nil {
		return models.Instrument{}, apperr.New(apperr.KindDataUnavailable, op, instID, err)
	}

	ctMult := 1.0
	if v := parseFloat(inst.CtMult); v > 0 {
		ctMult = v
	}

	return models.Instrument{
		InstID:    inst.InstID,
		State:     inst.State,
		LotSz:     lotSz,
		MinSz:     minSz,
		TickSz:    tickSz,
		CtVal:     ctVal * ctMult,
		MaxMktSz:  parseFloat(inst.MaxMktSz),
		SettleCcy: inst.SettleCcy,
	}, nil
}
