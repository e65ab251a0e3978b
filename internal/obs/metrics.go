package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoleConnected          = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "probelink_role_connected", Help: "Whether the role is currently occupied (0 or 1)"}, []string{"role"})
	SessionsTotal          = promauto.NewCounter(prometheus.CounterOpts{Name: "probelink_sessions_total", Help: "Sessions bridged"})
	RejectsTotal           = promauto.NewCounterVec(prometheus.CounterOpts{Name: "probelink_rejects_total", Help: "Connections rejected by role and reason"}, []string{"role", "reason"})
	TeardownsTotal         = promauto.NewCounterVec(prometheus.CounterOpts{Name: "probelink_teardowns_total", Help: "Cascade teardowns by triggering side"}, []string{"trigger"})
	RelayBytesTotal        = promauto.NewCounterVec(prometheus.CounterOpts{Name: "probelink_relay_bytes_total", Help: "Bytes relayed by direction"}, []string{"direction"})
	SessionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "probelink_session_duration_seconds", Help: "Bridged session lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.1, 2, 16)})
)
