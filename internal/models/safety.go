package models

import "time"

type SafetyState struct {
	StartingEquity    float64   `json:"starting_equity"`
	EmergencyStop     bool      `json:"emergency_stop"`
	EmergencyReason   string    `json:"emergency_reason,omitempty"`
	TriggeredAt       time.Time `json:"triggered_at,omitempty"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	CooldownUntil     time.Time `json:"cooldown_until,omitempty"`
	LastEquityCheck   time.Time `json:"last_equity_check,omitempty"`
	LastEquity        float64   `json:"last_equity"`
}
