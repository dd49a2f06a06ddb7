package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/quickbite/dispatch/core/metrics"
	"github.com/quickbite/dispatch/infra/logger"
)

// InfluxSink writes dispatch events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordOffers writes each push attempt as a point.
func (s *InfluxSink) RecordOffers(recs []coremetrics.OfferRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("offer_pushed").
			AddTag("order_id", strconv.FormatInt(r.OrderID, 10)).
			AddTag("courier_id", strconv.FormatInt(r.CourierID, 10)).
			AddTag("delivered", strconv.FormatBool(r.Delivered)).
			AddTag("component", "dispatch_manager").
			AddField("request_id", r.RequestID).
			AddField("distance_km", round3(r.DistanceKM)).
			AddField("score", round3(r.Score)).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordResolution writes a terminal request status.
func (s *InfluxSink) RecordResolution(rec coremetrics.ResolutionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("request_resolved").
		AddTag("order_id", strconv.FormatInt(rec.OrderID, 10)).
		AddTag("courier_id", strconv.FormatInt(rec.CourierID, 10)).
		AddTag("status", string(rec.Status)).
		AddTag("component", "dispatch_manager").
		AddField("request_id", rec.RequestID).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDelivery writes a delivery state advance.
func (s *InfluxSink) RecordDelivery(rec coremetrics.DeliveryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("delivery_advanced").
		AddTag("order_id", strconv.FormatInt(rec.OrderID, 10)).
		AddTag("courier_id", strconv.FormatInt(rec.CourierID, 10)).
		AddTag("status", string(rec.Status)).
		AddTag("component", "dispatch_responder").
		AddField("delivery_id", rec.DeliveryID).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
