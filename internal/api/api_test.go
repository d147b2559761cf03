package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/plantpulse/plant_hook/internal/dispatch"
	"github.com/plantpulse/plant_hook/internal/event"
	"github.com/plantpulse/plant_hook/internal/ledger"
	"github.com/plantpulse/plant_hook/internal/logging"
	"github.com/plantpulse/plant_hook/internal/notify"
	"github.com/plantpulse/plant_hook/internal/subscription"
	"github.com/plantpulse/plant_hook/internal/sweep"
)

type fakeRegistry struct {
	subs map[string]subscription.Subscription
}

func (f *fakeRegistry) Get(_ context.Context, id string) (subscription.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	return sub, nil
}

func (f *fakeRegistry) ListActiveForEvent(_ context.Context, eventType string) ([]subscription.Subscription, error) {
	var out []subscription.Subscription
	for _, sub := range f.subs {
		if sub.IsActive && sub.Subscribes(eventType) {
			out = append(out, sub)
		}
	}
	return out, nil
}

type fakeLedger struct {
	resetErr error
	stats    ledger.Stats
}

func (f *fakeLedger) ResetForRetry(_ context.Context, id string) (ledger.Entry, error) {
	if f.resetErr != nil {
		return ledger.Entry{}, f.resetErr
	}
	return ledger.Entry{ID: id, Status: ledger.StatusPending}, nil
}

func (f *fakeLedger) RetryStats(_ context.Context) (ledger.Stats, error) {
	return f.stats, nil
}

type fakeDispatcher struct {
	outcomes []dispatch.Outcome
}

func (f *fakeDispatcher) Deliver(_ context.Context, sub subscription.Subscription, _ event.Event) dispatch.Outcome {
	out := dispatch.Outcome{Success: true, HTTPStatus: 200, EntryID: "entry-" + sub.ID}
	f.outcomes = append(f.outcomes, out)
	return out
}

type fakeSweeper struct {
	result sweep.Result
}

func (f *fakeSweeper) Tick(_ context.Context) sweep.Result {
	return f.result
}

func newTestMux(reg *fakeRegistry, led *fakeLedger, disp *fakeDispatcher, sw *fakeSweeper) *http.ServeMux {
	log := logging.New("test")
	svc := notify.NewService(reg, led, disp, sw, log)
	mux := http.NewServeMux()
	New(svc, log).Register(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	mux := newTestMux(&fakeRegistry{}, &fakeLedger{}, &fakeDispatcher{}, &fakeSweeper{})
	w := doRequest(t, mux, "GET", "/v1/ping", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestTrigger(t *testing.T) {
	reg := &fakeRegistry{subs: map[string]subscription.Subscription{
		"s1": {ID: "s1", IsActive: true, EventTypes: []string{event.TypeQualityAlert}},
	}}
	disp := &fakeDispatcher{}
	mux := newTestMux(reg, &fakeLedger{}, disp, &fakeSweeper{})

	w := doRequest(t, mux, "POST", "/v1/trigger",
		`{"event_type":"quality_alert","data":{"machine_id":"press-4"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var sum notify.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("response parse: %v", err)
	}
	if sum.Matched != 1 || sum.Sent != 1 {
		t.Errorf("Summary = %+v, want 1 matched, 1 sent", sum)
	}
	if len(disp.outcomes) != 1 {
		t.Errorf("dispatched %d times, want 1", len(disp.outcomes))
	}
}

func TestTriggerValidation(t *testing.T) {
	mux := newTestMux(&fakeRegistry{}, &fakeLedger{}, &fakeDispatcher{}, &fakeSweeper{})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing event_type", body: `{"data":{}}`},
		{name: "malformed JSON", body: `{not json`},
		{name: "unknown field", body: `{"event_type":"quality_alert","bogus":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, mux, "POST", "/v1/trigger", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestSubscriptionTest(t *testing.T) {
	reg := &fakeRegistry{subs: map[string]subscription.Subscription{
		"s1": {ID: "s1", IsActive: true},
	}}
	mux := newTestMux(reg, &fakeLedger{}, &fakeDispatcher{}, &fakeSweeper{})

	w := doRequest(t, mux, "POST", "/v1/subscriptions/s1/test", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out dispatch.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response parse: %v", err)
	}
	if !out.Success {
		t.Errorf("Outcome = %+v, want success", out)
	}

	w = doRequest(t, mux, "POST", "/v1/subscriptions/nope/test", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown subscription status = %d, want 404", w.Code)
	}
}

func TestManualRetry(t *testing.T) {
	tests := []struct {
		name     string
		resetErr error
		expected int
	}{
		{name: "reset ok", expected: http.StatusOK},
		{name: "entry missing", resetErr: ledger.ErrNotFound, expected: http.StatusNotFound},
		{name: "already delivered", resetErr: ledger.ErrAlreadySent, expected: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(&fakeRegistry{}, &fakeLedger{resetErr: tt.resetErr}, &fakeDispatcher{}, &fakeSweeper{})
			w := doRequest(t, mux, "POST", "/v1/entries/e1/retry", "")
			if w.Code != tt.expected {
				t.Errorf("status = %d, want %d", w.Code, tt.expected)
			}
		})
	}
}

func TestSweep(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		sw := &fakeSweeper{result: sweep.Result{Processed: 3, Succeeded: 2, Failed: 1}}
		mux := newTestMux(&fakeRegistry{}, &fakeLedger{}, &fakeDispatcher{}, sw)

		w := doRequest(t, mux, "POST", "/v1/sweep", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var res sweep.Result
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("response parse: %v", err)
		}
		if res.Processed != 3 {
			t.Errorf("Result = %+v", res)
		}
	})

	t.Run("skipped", func(t *testing.T) {
		sw := &fakeSweeper{result: sweep.Result{Skipped: true}}
		mux := newTestMux(&fakeRegistry{}, &fakeLedger{}, &fakeDispatcher{}, sw)

		w := doRequest(t, mux, "POST", "/v1/sweep", "")
		if w.Code != http.StatusAccepted {
			t.Errorf("status = %d, want 202", w.Code)
		}
	})
}

func TestStats(t *testing.T) {
	led := &fakeLedger{stats: ledger.Stats{Pending: 4, Exhausted: 2, TotalRetries: 11}}
	mux := newTestMux(&fakeRegistry{}, led, &fakeDispatcher{}, &fakeSweeper{})

	w := doRequest(t, mux, "GET", "/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var st ledger.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("response parse: %v", err)
	}
	if st.Pending != 4 || st.Exhausted != 2 || st.TotalRetries != 11 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(&fakeRegistry{}, &fakeLedger{}, &fakeDispatcher{}, &fakeSweeper{})
	w := doRequest(t, mux, "GET", "/v1/sweep", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
