package swap

import "github.com/prometheus/client_golang/prometheus"

var swapsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "modelmgr",
		Subsystem: "swap",
		Name:      "operations_total",
		Help:      "Hot-swap operations by kind and outcome",
	},
	[]string{"role", "kind", "outcome"},
)

func init() {
	prometheus.MustRegister(swapsTotal)
}
