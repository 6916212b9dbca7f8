package types

import "time"

// BackendState is one row of a health snapshot: the last observed status of
// a single backend plus how long the check took.
type BackendState struct {
	Status    HealthStatus `json:"status"`
	LatencyMs int64        `json:"latencyMs"` // check duration in milliseconds (-1 for failed/unknown)
	Error     string       `json:"error,omitempty"`
	CheckedAt time.Time    `json:"checkedAt"`
}
