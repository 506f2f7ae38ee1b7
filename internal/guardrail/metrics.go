package guardrail

import "github.com/prometheus/client_golang/prometheus"

var violationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "modelmgr",
		Subsystem: "guardrail",
		Name:      "violations_total",
		Help:      "Guardrail stage violations by stage and role",
	},
	[]string{"stage", "role"},
)

func init() {
	prometheus.MustRegister(violationsTotal)
}
