package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recon_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RPCActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_rpc_actions_total",
			Help: "RPC actions handled by action and outcome",
		},
		[]string{"action", "status"},
	)

	LockAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_lock_attempts_total",
			Help: "Item lock attempts by result (granted, denied, error)",
		},
		[]string{"result"},
	)

	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_saves_total",
			Help: "Saved records by module",
		},
		[]string{"module"},
	)

	ActiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_active_users",
			Help: "Users seen within the presence window",
		},
	)

	ProxyCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_proxy_cache_total",
			Help: "Proxy read cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
)
