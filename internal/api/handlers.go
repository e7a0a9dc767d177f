package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/alerting"
)

const maxAlertBody = 4 << 10

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handleAlert accepts {"type":"threat","level":"LEVEL_4_CRITICAL", ...}.
func (rt *Router) handleAlert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAlertBody)

	var a alerting.Alert
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		rt.deps.Metrics.RecordAlertReceived(false)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := rt.deps.Core.RaiseAlert(r.Context(), a); err != nil {
		rt.deps.Metrics.RecordAlertReceived(false)
		if errors.Is(err, alerting.ErrInvalidAlert) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rt.deps.Logger.Errorf("raise alert: %v", err)
		writeError(w, http.StatusInternalServerError, "alert not applied")
		return
	}

	rt.deps.Metrics.RecordAlertReceived(true)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"level":  string(a.Level),
	})
}

func (rt *Router) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.deps.Core.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
