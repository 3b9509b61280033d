package provision

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	provisionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netvoucher_provision_total",
			Help: "Voucher provisioning attempts by outcome.",
		},
		[]string{"outcome"},
	)

	provisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netvoucher_provision_duration_seconds",
			Help:    "Voucher provisioning latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func observeProvision(start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	provisionTotal.WithLabelValues(outcome).Inc()
	provisionDuration.Observe(time.Since(start).Seconds())
}
