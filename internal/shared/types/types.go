package types

import (
	"context"
	"encoding/json"
)

// Backend is any subsystem whose liveness the server tracks and reports.
// The document store and the web searcher both implement it.
type Backend interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

type HealthStatus int

const (
	StatusUnknown HealthStatus = iota // Default value
	StatusUp
	StatusDown
)

func (s HealthStatus) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the status in its string form.
func (s HealthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *HealthStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "up":
		*s = StatusUp
	case "down":
		*s = StatusDown
	default:
		*s = StatusUnknown
	}
	return nil
}
