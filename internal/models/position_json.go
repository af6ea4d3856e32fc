package models

import (
	"fmt"
	"math"
	"time"

	"github.com/bytedance/sonic"
)

// UnmarshalJSON accepts opened_at as RFC3339 or as unix seconds (float),
// the format older position files were written with.
func (p *PositionRecord) UnmarshalJSON(data []byte) error {
	type plain PositionRecord
	var aux struct {
		plain
		OpenedAt any `json:"opened_at"`
	}
	if err := sonic.Unmarshal(data, &aux); err != nil {
		return err
	}

	openedAt, err := parseOpenedAt(aux.OpenedAt)
	if err != nil {
		return err
	}
	*p = PositionRecord(aux.plain)
	p.OpenedAt = openedAt
	return nil
}

func parseOpenedAt(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case float64:
		if t <= 0 {
			return time.Time{}, nil
		}
		sec, frac := math.Modf(t)
		return time.Unix(int64(sec), int64(math.Round(frac*1e6))*1e3).UTC(), nil
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		ts, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("opened_at: %w", err)
		}
		return ts, nil
	default:
		return time.Time{}, fmt.Errorf("opened_at: unexpected %T", v)
	}
}
