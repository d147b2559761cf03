package event

import "time"

// Platform event types fanned out to webhook subscriptions.
const (
	TypeQualityAlert     = "quality_alert"
	TypeRuleViolation    = "rule_violation"
	TypeAnalysisComplete = "analysis_complete"
	TypeLicenseExpiring  = "license_expiring"
	TypeLicenseExpired   = "license_expired"
	TypeLicenseRevoked   = "license_revoked"
	TypeTestNotification = "test_notification"
)

// Severity levels used for destination-specific payload coloring.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Event is one platform occurrence to be delivered to matching subscriptions.
// Immutable once created.
type Event struct {
	Type         string            `json:"event_type"`
	Timestamp    time.Time         `json:"timestamp"`
	Data         map[string]any    `json:"data"`
	TraceHeaders map[string]string `json:"trace_headers,omitempty"` // OTel trace propagation headers
}

// New builds an event stamped with the current time.
func New(eventType string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewTest builds the canned event used by one-shot subscription tests.
func NewTest() Event {
	return New(TypeTestNotification, map[string]any{
		"message": "This is a test notification",
	})
}

var defaultSeverities = map[string]string{
	TypeQualityAlert:     SeverityCritical,
	TypeRuleViolation:    SeverityWarning,
	TypeAnalysisComplete: SeverityInfo,
	TypeLicenseExpiring:  SeverityWarning,
	TypeLicenseExpired:   SeverityCritical,
	TypeLicenseRevoked:   SeverityCritical,
}

// Severity classifies an event for display purposes. An explicit
// "severity" value in the event data wins; otherwise the event type's
// default applies, falling back to info for unknown types.
func (e Event) Severity() string {
	if s, ok := e.Data["severity"].(string); ok {
		switch s {
		case SeverityCritical, SeverityWarning, SeverityInfo:
			return s
		}
	}
	if s, ok := defaultSeverities[e.Type]; ok {
		return s
	}
	return SeverityInfo
}
