// Package payload shapes a platform event into the body expected by a
// subscription's destination kind. Formatting is pure: no I/O, and unknown
// event types or destination kinds fall back to the generic passthrough.
package payload

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/plantpulse/plant_hook/internal/event"
	"github.com/plantpulse/plant_hook/internal/subscription"
)

// Severity colors shared by the Slack and Teams shapes.
const (
	colorRed   = "#DC3545" // critical
	colorAmber = "#FFC107" // warning
	colorGreen = "#28A745" // info and everything else
)

type formatter func(event.Event) any

var formatters = map[string]formatter{
	subscription.KindSlack: slackBody,
	subscription.KindTeams: teamsBody,
}

// Format renders the event for the given destination kind and returns the
// JSON body to POST. Kinds without a dedicated formatter get the generic
// passthrough.
func Format(e event.Event, kind string) ([]byte, error) {
	f, ok := formatters[kind]
	if !ok {
		f = genericBody
	}
	b, err := json.Marshal(f(e))
	if err != nil {
		return nil, fmt.Errorf("format %s payload: %w", kind, err)
	}
	return b, nil
}

func severityColor(e event.Event) string {
	switch e.Severity() {
	case event.SeverityCritical:
		return colorRed
	case event.SeverityWarning:
		return colorAmber
	default:
		return colorGreen
	}
}

// title turns "quality_alert" into "Quality Alert".
func title(eventType string) string {
	words := strings.Split(eventType, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// text pulls a human-readable line out of the event data.
func text(e event.Event) string {
	if msg, ok := e.Data["message"].(string); ok && msg != "" {
		return msg
	}
	return title(e.Type)
}

func genericBody(e event.Event) any {
	return map[string]any{
		"event_type": e.Type,
		"timestamp":  e.Timestamp,
		"data":       e.Data,
	}
}

func slackBody(e event.Event) any {
	fields := make([]map[string]any, 0, len(e.Data))
	for k, v := range e.Data {
		if k == "message" || k == "severity" {
			continue
		}
		fields = append(fields, map[string]any{
			"title": title(k),
			"value": fmt.Sprintf("%v", v),
			"short": true,
		})
	}
	return map[string]any{
		"attachments": []map[string]any{{
			"color":  severityColor(e),
			"title":  title(e.Type),
			"text":   text(e),
			"ts":     e.Timestamp.Unix(),
			"fields": fields,
		}},
	}
}

func teamsBody(e event.Event) any {
	facts := make([]map[string]string, 0, len(e.Data))
	for k, v := range e.Data {
		if k == "message" || k == "severity" {
			continue
		}
		facts = append(facts, map[string]string{
			"name":  title(k),
			"value": fmt.Sprintf("%v", v),
		})
	}
	return map[string]any{
		"@type":    "MessageCard",
		"@context": "https://schema.org/extensions",
		// MessageCard wants the hex color without the leading #
		"themeColor": strings.TrimPrefix(severityColor(e), "#"),
		"summary":    title(e.Type),
		"title":      title(e.Type),
		"text":       text(e),
		"sections": []map[string]any{{
			"facts": facts,
		}},
	}
}
