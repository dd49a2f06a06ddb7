package registry

import "github.com/prometheus/client_golang/prometheus"

var (
	liveConnections *prometheus.GaugeVec
	messagesSent    *prometheus.CounterVec
	sendFailures    *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.GaugeVec, *prometheus.CounterVec, *prometheus.CounterVec) {
	live := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registry_live_connections",
			Help: "Number of live actor connections per role",
		},
		[]string{"role"},
	)
	sent := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_messages_sent_total",
			Help: "Number of messages delivered per role",
		},
		[]string{"role"},
	)
	fail := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_send_failures_total",
			Help: "Number of failed transmits that dropped a channel",
		},
		[]string{"role"},
	)
	return live, sent, fail
}

func init() {
	liveConnections, messagesSent, sendFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers registry metrics on the provided
// registry. If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(liveConnections, messagesSent, sendFailures)
}

// ResetMetrics reinitializes the collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	liveConnections, messagesSent, sendFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
