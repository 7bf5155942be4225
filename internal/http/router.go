package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"route-recon/internal/handlers"
)

// NewRouter wires the record server. reportHandler may be nil.
func NewRouter(
	rpcHandler *handlers.RPCHandler,
	reportHandler *handlers.ReportHandler,
	liveHandler *handlers.LiveHandler,
	healthHandler *handlers.HealthHandler,
) *mux.Router {
	r := mux.NewRouter()

	// Single action-multiplexed endpoint; /exec mirrors the original script URL
	r.HandleFunc("/api/exec", rpcHandler.Exec).Methods("POST")
	r.HandleFunc("/exec", rpcHandler.Exec).Methods("POST")

	if reportHandler != nil {
		r.HandleFunc("/api/reports/daily", reportHandler.Daily).Methods("GET")
		r.HandleFunc("/api/archive", reportHandler.Snapshots).Methods("GET")
	}

	// Live activity feed for dashboards
	r.HandleFunc("/ws/activity", liveHandler.ServeWS).Methods("GET")

	registerOps(r, healthHandler)
	return r
}

// NewProxyRouter wires proxy mode: the exec endpoint forwarded upstream.
func NewProxyRouter(proxyHandler *handlers.ProxyHandler, healthHandler *handlers.HealthHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/exec", proxyHandler.Forward).Methods("POST")
	r.HandleFunc("/exec", proxyHandler.Forward).Methods("POST")
	registerOps(r, healthHandler)
	return r
}

func registerOps(r *mux.Router, healthHandler *handlers.HealthHandler) {
	// Health endpoints (no auth - for K8s probes and monitoring)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
}
