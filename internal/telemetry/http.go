package telemetry

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

var processStart = time.Now()

// HealthResponse is served at /healthz.
type HealthResponse struct {
	Status     string  `json:"status"`
	UptimeSec  float64 `json:"uptime_seconds"`
	Go         string  `json:"go_version"`
	GoRoutines int     `json:"goroutines"`
}

// NewHTTPHandler builds the mux served by the telemetry HTTP listener:
// /healthz for liveness and, when prom is non-nil, /metrics for Prometheus
// scraping. Both routes are cheap enough to serve on every scrape interval.
func NewHTTPHandler(prom *PrometheusSink) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	if prom != nil {
		mux.Handle("GET /metrics", prom.Handler())
	}
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		UptimeSec:  time.Since(processStart).Seconds(),
		Go:         runtime.Version(),
		GoRoutines: runtime.NumGoroutine(),
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(resp)
}
