package routeros

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deviceOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netvoucher_device_operations_total",
			Help: "Device API operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	deviceOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netvoucher_device_operation_duration_seconds",
			Help:    "Device API operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func observeDeviceOp(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	deviceOpsTotal.WithLabelValues(op, outcome).Inc()
	deviceOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
