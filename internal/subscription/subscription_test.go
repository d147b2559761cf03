package subscription

import "testing"

func TestSubscribes(t *testing.T) {
	tests := []struct {
		name       string
		eventTypes []string
		eventType  string
		expected   bool
	}{
		{
			name:       "subscribed type matches",
			eventTypes: []string{"quality_alert", "rule_violation"},
			eventType:  "quality_alert",
			expected:   true,
		},
		{
			name:       "unsubscribed type does not match",
			eventTypes: []string{"quality_alert"},
			eventType:  "license_expired",
			expected:   false,
		},
		{
			name:       "empty set matches nothing",
			eventTypes: nil,
			eventType:  "quality_alert",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := Subscription{EventTypes: tt.eventTypes}
			if got := sub.Subscribes(tt.eventType); got != tt.expected {
				t.Errorf("Subscribes(%q) = %v, want %v", tt.eventType, got, tt.expected)
			}
		})
	}
}
