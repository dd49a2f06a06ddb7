package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	offersPushed     *prometheus.CounterVec
	requestsResolved *prometheus.CounterVec
	dispatchCycles   prometheus.Counter
	cyclesExhausted  prometheus.Counter
	offerTimeouts    prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	offers := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_offers_pushed_total",
			Help: "Number of offer push attempts by delivery outcome",
		},
		[]string{"delivered"},
	)
	resolved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_requests_resolved_total",
			Help: "Number of dispatch requests reaching a terminal status",
		},
		[]string{"status"},
	)
	cycles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_cycles_total",
			Help: "Number of matching cycles started",
		},
	)
	exhausted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_cycles_exhausted_total",
			Help: "Number of cycles that ran out of candidates without an assignment",
		},
	)
	timeouts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_offer_timeouts_total",
			Help: "Number of offers expired by the timeout watcher",
		},
	)
	return offers, resolved, cycles, exhausted, timeouts
}

func init() {
	offersPushed, requestsResolved, dispatchCycles, cyclesExhausted, offerTimeouts = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided
// registry. If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offersPushed, requestsResolved, dispatchCycles, cyclesExhausted, offerTimeouts)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offersPushed, requestsResolved, dispatchCycles, cyclesExhausted, offerTimeouts = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
