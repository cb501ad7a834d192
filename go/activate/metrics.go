package activate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Adapted from the counter-vec style of the upstream network proxy's
// metrics.go: one promauto-registered CounterVec/GaugeVec per externally
// observable controller event, labeled by catalog name so a single tick
// loop's behavior across many tasks can be sliced in a dashboard.

var tickActivateCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "data_plane_controller_activate_total",
	Help: "counter of data-plane activations issued by the controller tick loop",
}, []string{"catalog_name", "reason"})

var tickErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "data_plane_controller_tick_errors_total",
	Help: "counter of controller tick invocations that returned an error",
}, []string{"catalog_name"})

var shardHealthGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "data_plane_controller_shard_health",
	Help: "most recent aggregate shard health observed per task: 0=Pending, 1=Ok, 2=Failed",
}, []string{"catalog_name"})

func recordActivation(catalogName, reason string) {
	tickActivateCounter.WithLabelValues(catalogName, reason).Inc()
}

func recordTickError(catalogName string) {
	tickErrorCounter.WithLabelValues(catalogName).Inc()
}

func recordShardHealth(catalogName string, health ShardHealth) {
	var v float64
	switch health {
	case HealthOk:
		v = 1
	case HealthFailed:
		v = 2
	}
	shardHealthGauge.WithLabelValues(catalogName).Set(v)
}
