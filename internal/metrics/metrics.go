// Package metrics holds the Prometheus collectors exported by killsync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal counts kill log fetches by result ("ok" or "error").
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killsync_fetch_total",
			Help: "Total number of kill log fetches",
		},
		[]string{"result"},
	)

	// RemoteErrorsTotal counts remote faults by error code.
	RemoteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killsync_remote_errors_total",
			Help: "Total number of remote API errors by code",
		},
		[]string{"code"},
	)

	// KillmailsIngested counts newly stored killmails.
	KillmailsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "killsync_killmails_ingested_total",
			Help: "Total number of killmails newly stored",
		},
	)

	// ShardsSkipped counts shard launches abandoned because the shard was busy.
	ShardsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "killsync_shard_skipped_total",
			Help: "Total number of shard launches skipped while a previous worker held the lock",
		},
	)

	// WorkersLaunched counts shard workers started.
	WorkersLaunched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "killsync_workers_launched_total",
			Help: "Total number of shard workers started",
		},
	)

	// APIStopActive is 1 while the global outage marker suppresses polling.
	APIStopActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "killsync_api_stop_active",
			Help: "Whether polling is suspended by a service-wide remote fault",
		},
	)
)
