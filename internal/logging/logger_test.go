package logging

import (
	"context"
	"errors"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := New("test-service")
	if logger == nil {
		t.Fatal("New returned nil")
	}
	if logger.service != "test-service" {
		t.Errorf("service = %q, want %q", logger.service, "test-service")
	}
}

func TestPlainEntry(t *testing.T) {
	logger := New("svc")
	entry := logger.Plain()
	if entry.Service != "svc" {
		t.Errorf("Service = %q, want %q", entry.Service, "svc")
	}
	if entry.Time.IsZero() {
		t.Error("Time should be set")
	}
}

func TestWithContextNoTrace(t *testing.T) {
	logger := New("svc")
	entry := logger.WithContext(context.Background())
	if entry.TraceID != "" {
		t.Errorf("TraceID = %q, want empty without an active span", entry.TraceID)
	}
}

func TestFluentFields(t *testing.T) {
	entry := New("svc").Plain().
		WithSubscription("sub-1").
		WithEntry("entry-1").
		WithEventType("quality_alert").
		WithField("attempt", 2)

	if entry.SubscriptionID != "sub-1" {
		t.Errorf("SubscriptionID = %q, want %q", entry.SubscriptionID, "sub-1")
	}
	if entry.EntryID != "entry-1" {
		t.Errorf("EntryID = %q, want %q", entry.EntryID, "entry-1")
	}
	if entry.EventType != "quality_alert" {
		t.Errorf("EventType = %q, want %q", entry.EventType, "quality_alert")
	}
	if got := entry.Fields["attempt"]; got != 2 {
		t.Errorf("Fields[attempt] = %v, want 2", got)
	}
}

func TestWithError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField bool
	}{
		{name: "non-nil error recorded", err: errors.New("boom"), wantField: true},
		{name: "nil error ignored", err: nil, wantField: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &LogEntry{}
			entry.WithError(tt.err)
			_, ok := entry.Fields["error"]
			if ok != tt.wantField {
				t.Errorf("error field present = %v, want %v", ok, tt.wantField)
			}
		})
	}
}

func TestWithFieldsMerges(t *testing.T) {
	entry := &LogEntry{Fields: map[string]any{"a": 1}}
	entry.WithFields(map[string]any{"b": 2, "c": 3})

	if len(entry.Fields) != 3 {
		t.Fatalf("Fields has %d keys, want 3", len(entry.Fields))
	}
	if entry.Fields["b"] != 2 || entry.Fields["c"] != 3 {
		t.Error("WithFields did not merge new keys")
	}
}
