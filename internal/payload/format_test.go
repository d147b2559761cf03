package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/plantpulse/plant_hook/internal/event"
	"github.com/plantpulse/plant_hook/internal/subscription"
)

func testEvent(eventType string, data map[string]any) event.Event {
	return event.Event{
		Type:      eventType,
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Data:      data,
	}
}

func TestFormatGenericPassthrough(t *testing.T) {
	e := testEvent(event.TypeQualityAlert, map[string]any{"machine": "press-4"})

	b, err := Format(e, subscription.KindGeneric)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(b, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["event_type"] != event.TypeQualityAlert {
		t.Errorf("event_type = %v, want %q", body["event_type"], event.TypeQualityAlert)
	}
	data, _ := body["data"].(map[string]any)
	if data["machine"] != "press-4" {
		t.Errorf("data.machine = %v, want press-4", data["machine"])
	}
}

func TestFormatUnknownKindFallsBackToGeneric(t *testing.T) {
	e := testEvent(event.TypeRuleViolation, nil)

	generic, err := Format(e, subscription.KindGeneric)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	unknown, err := Format(e, "pagerduty")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if string(generic) != string(unknown) {
		t.Errorf("unknown kind = %s, want generic shape %s", unknown, generic)
	}
}

func TestFormatSlack(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		data      map[string]any
		wantColor string
	}{
		{
			name:      "critical is red",
			eventType: event.TypeQualityAlert,
			data:      map[string]any{"message": "cpk below threshold"},
			wantColor: colorRed,
		},
		{
			name:      "warning is amber",
			eventType: event.TypeRuleViolation,
			wantColor: colorAmber,
		},
		{
			name:      "info is green",
			eventType: event.TypeAnalysisComplete,
			wantColor: colorGreen,
		},
		{
			name:      "unknown event type is green",
			eventType: "machine_hiccup",
			wantColor: colorGreen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Format(testEvent(tt.eventType, tt.data), subscription.KindSlack)
			if err != nil {
				t.Fatalf("Format error: %v", err)
			}

			var body struct {
				Attachments []struct {
					Color string `json:"color"`
					Title string `json:"title"`
					Text  string `json:"text"`
					TS    int64  `json:"ts"`
				} `json:"attachments"`
			}
			if err := json.Unmarshal(b, &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(body.Attachments) != 1 {
				t.Fatalf("attachments = %d, want 1", len(body.Attachments))
			}
			att := body.Attachments[0]
			if att.Color != tt.wantColor {
				t.Errorf("color = %q, want %q", att.Color, tt.wantColor)
			}
			if att.Title == "" {
				t.Error("attachment title should not be empty")
			}
			if msg, ok := tt.data["message"].(string); ok && att.Text != msg {
				t.Errorf("text = %q, want %q", att.Text, msg)
			}
		})
	}
}

func TestFormatTeams(t *testing.T) {
	e := testEvent(event.TypeLicenseExpired, map[string]any{
		"message": "license expired yesterday",
		"plant":   "north",
	})

	b, err := Format(e, subscription.KindTeams)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	var body struct {
		Type       string `json:"@type"`
		Context    string `json:"@context"`
		ThemeColor string `json:"themeColor"`
		Title      string `json:"title"`
		Text       string `json:"text"`
		Sections   []struct {
			Facts []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"facts"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Type != "MessageCard" {
		t.Errorf("@type = %q, want MessageCard", body.Type)
	}
	if body.ThemeColor != "DC3545" {
		t.Errorf("themeColor = %q, want DC3545 (no # prefix)", body.ThemeColor)
	}
	if body.Title != "License Expired" {
		t.Errorf("title = %q, want %q", body.Title, "License Expired")
	}
	if body.Text != "license expired yesterday" {
		t.Errorf("text = %q", body.Text)
	}
	if len(body.Sections) != 1 || len(body.Sections[0].Facts) != 1 {
		t.Fatalf("want one section with one fact (message/severity excluded), got %+v", body.Sections)
	}
	if body.Sections[0].Facts[0].Name != "Plant" || body.Sections[0].Facts[0].Value != "north" {
		t.Errorf("fact = %+v, want Plant/north", body.Sections[0].Facts[0])
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"quality_alert", "Quality Alert"},
		{"license_expiring", "License Expiring"},
		{"plain", "Plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := title(tt.in); got != tt.out {
			t.Errorf("title(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}
