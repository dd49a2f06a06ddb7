package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/quickbite/dispatch/core/metrics"
)

// PromSink records dispatch outcomes in Prometheus metrics.
type PromSink struct {
	offers      *prometheus.CounterVec
	distance    *prometheus.HistogramVec
	resolutions *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_sink_offers_total",
		Help: "Total number of offer push attempts",
	}, []string{"delivered"})
	distance := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_sink_offer_distance_km",
		Help:    "Courier to restaurant distance at offer time",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50},
	}, []string{"delivered"})
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_sink_resolutions_total",
		Help: "Total number of requests reaching a terminal status",
	}, []string{"status"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_sink_delivery_advances_total",
		Help: "Total number of delivery state advances",
	}, []string{"status"})

	if err := reg.Register(offers); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			offers = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(distance); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			distance = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(resolutions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			resolutions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(deliveries); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			deliveries = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{offers: offers, distance: distance, resolutions: resolutions, deliveries: deliveries}, nil
}

// RecordOffers increments the counter and distance histogram for each push attempt.
func (s *PromSink) RecordOffers(recs []coremetrics.OfferRecord) error {
	for _, r := range recs {
		delivered := strconv.FormatBool(r.Delivered)
		s.offers.WithLabelValues(delivered).Inc()
		s.distance.WithLabelValues(delivered).Observe(r.DistanceKM)
	}
	return nil
}

// RecordResolution counts a request reaching a terminal status.
func (s *PromSink) RecordResolution(rec coremetrics.ResolutionRecord) error {
	s.resolutions.WithLabelValues(string(rec.Status)).Inc()
	return nil
}

// RecordDelivery counts a delivery state advance.
func (s *PromSink) RecordDelivery(rec coremetrics.DeliveryRecord) error {
	s.deliveries.WithLabelValues(string(rec.Status)).Inc()
	return nil
}
