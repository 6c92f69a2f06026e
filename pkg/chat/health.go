package chat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"atlas/pkg/persistence"
)

// NewHealthServer builds the side-port server exposing liveness and
// Prometheus metrics.
func NewHealthServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		status := map[string]any{"status": "ok"}
		if persistence.IsInitialized() {
			if depth, err := persistence.QueueDepth(); err == nil {
				status["queue_depth"] = depth
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(status)
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
