package subscription

import "time"

// Destination kinds determine how payloads are shaped for the target.
const (
	KindGeneric = "generic"
	KindSlack   = "slack"
	KindTeams   = "teams"
)

// Subscription is an externally registered delivery target. The registry
// service owns writes to everything except the aggregate stats; this engine
// only reads it and bumps the stats after dispatch.
type Subscription struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	Secret          string            `json:"secret,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	EventTypes      []string          `json:"event_types"`
	Kind            string            `json:"destination_kind"`
	IsActive        bool              `json:"is_active"`
	TriggerCount    int64             `json:"trigger_count"`
	LastTriggeredAt *time.Time        `json:"last_triggered_at,omitempty"`
	LastError       string            `json:"last_error,omitempty"`
}

// Subscribes reports whether the subscription wants the given event type.
func (s Subscription) Subscribes(eventType string) bool {
	for _, t := range s.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}
