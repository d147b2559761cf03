// Package api exposes the admin HTTP surface of the notifier: event
// triggering, one-shot subscription tests, manual retries, sweeps and stats.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plantpulse/plant_hook/internal/event"
	"github.com/plantpulse/plant_hook/internal/ledger"
	"github.com/plantpulse/plant_hook/internal/logging"
	"github.com/plantpulse/plant_hook/internal/notify"
	"github.com/plantpulse/plant_hook/internal/subscription"
)

// maxRequestBody bounds trigger request bodies well above the outbound
// payload cap so oversized events are rejected by the executor, not here.
const maxRequestBody = 1 << 20

type API struct {
	svc *notify.Service
	log *logging.Logger
}

func New(svc *notify.Service, log *logging.Logger) *API {
	return &API{svc: svc, log: log}
}

// Register installs the admin routes on the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/ping", a.handlePing)
	mux.HandleFunc("POST /v1/trigger", a.handleTrigger)
	mux.HandleFunc("POST /v1/subscriptions/{id}/test", a.handleTest)
	mux.HandleFunc("POST /v1/entries/{id}/retry", a.handleRetry)
	mux.HandleFunc("POST /v1/sweep", a.handleSweep)
	mux.HandleFunc("GET /v1/stats", a.handleStats)
}

type triggerRequest struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

func (a *API) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EventType == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	sum, err := a.svc.Trigger(r.Context(), event.New(req.EventType, req.Data))
	if err != nil {
		a.log.WithContext(r.Context()).WithError(err).Error("trigger failed")
		writeError(w, http.StatusInternalServerError, "trigger failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) handleTest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	out, err := a.svc.Test(r.Context(), id)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		a.log.WithContext(r.Context()).WithSubscription(id).WithError(err).Error("test notification failed")
		writeError(w, http.StatusInternalServerError, "test notification failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, err := a.svc.ManualRetry(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			writeError(w, http.StatusNotFound, "entry not found")
		case errors.Is(err, ledger.ErrAlreadySent):
			writeError(w, http.StatusConflict, "entry already delivered")
		default:
			a.log.WithContext(r.Context()).WithEntry(id).WithError(err).Error("manual retry failed")
			writeError(w, http.StatusInternalServerError, "manual retry failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleSweep(w http.ResponseWriter, r *http.Request) {
	res := a.svc.Sweep(r.Context())
	status := http.StatusOK
	if res.Skipped {
		// A sweep is already running; tell the caller nothing happened.
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.RetryStats(r.Context())
	if err != nil {
		a.log.WithContext(r.Context()).WithError(err).Error("stats query failed")
		writeError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
