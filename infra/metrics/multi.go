package metrics

import coremetrics "github.com/quickbite/dispatch/core/metrics"

// MultiSink fanouts dispatch records to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOffers forwards the records to all sinks, returning the first error encountered.
func (m *MultiSink) RecordOffers(recs []coremetrics.OfferRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordOffers(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordResolution forwards resolutions to sinks that support them.
func (m *MultiSink) RecordResolution(rec coremetrics.ResolutionRecord) error {
	for _, s := range m.Sinks {
		if rr, ok := s.(coremetrics.ResolutionRecorder); ok {
			if err := rr.RecordResolution(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDelivery forwards delivery advances to sinks that support them.
func (m *MultiSink) RecordDelivery(rec coremetrics.DeliveryRecord) error {
	for _, s := range m.Sinks {
		if dr, ok := s.(coremetrics.DeliveryRecorder); ok {
			if err := dr.RecordDelivery(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
