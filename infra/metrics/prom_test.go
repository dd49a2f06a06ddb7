package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/quickbite/dispatch/core/metrics"
	"github.com/quickbite/dispatch/core/model"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	ps := sink.(*PromSink)

	require.NoError(t, ps.RecordOffers([]coremetrics.OfferRecord{
		{RequestID: 1, DistanceKM: 1.2, Delivered: true},
		{RequestID: 2, DistanceKM: 9.7, Delivered: false},
	}))
	require.NoError(t, ps.RecordResolution(coremetrics.ResolutionRecord{Status: model.RequestAccepted}))
	require.NoError(t, ps.RecordDelivery(coremetrics.DeliveryRecord{Status: model.DeliveryDelivered}))

	assert.Equal(t, 1.0, testutil.ToFloat64(ps.offers.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ps.offers.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ps.resolutions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ps.deliveries.WithLabelValues("delivered")))
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	// Registering again reuses the existing collectors.
	_, err = NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
}
