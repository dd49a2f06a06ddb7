package metrics

import (
	"time"

	"github.com/quickbite/dispatch/core/model"
)

// OfferRecord represents one offer push attempt to be recorded.
type OfferRecord struct {
	RequestID  int64
	OrderID    int64
	CourierID  int64
	DistanceKM float64
	Score      float64
	Delivered  bool
	Time       time.Time
}

// ResolutionRecord captures a dispatch request reaching a terminal
// status.
type ResolutionRecord struct {
	RequestID int64
	OrderID   int64
	CourierID int64
	Status    model.RequestStatus
	Time      time.Time
}

// DeliveryRecord captures a delivery state advance.
type DeliveryRecord struct {
	DeliveryID int64
	OrderID    int64
	CourierID  int64
	Status     model.DeliveryStatus
	Time       time.Time
}

// MetricsSink records dispatch outcomes for observability purposes.
type MetricsSink interface {
	RecordOffers(recs []OfferRecord) error
}

// ResolutionRecorder is implemented by sinks able to record request
// resolutions.
type ResolutionRecorder interface {
	RecordResolution(rec ResolutionRecord) error
}

// DeliveryRecorder is implemented by sinks able to record delivery
// advances.
type DeliveryRecorder interface {
	RecordDelivery(rec DeliveryRecord) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordOffers([]OfferRecord) error        { return nil }
func (NopSink) RecordResolution(ResolutionRecord) error { return nil }
func (NopSink) RecordDelivery(DeliveryRecord) error     { return nil }
