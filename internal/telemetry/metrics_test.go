package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]metricdata.Sum[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				sums[m.Name] = sum
			}
		}
	}
	return sums
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m := newMetrics(mp.Meter(meterName))
	ctx := context.Background()

	m.RecordRequest(ctx)
	m.RecordRequest(ctx)
	m.RecordRequestError(ctx, "network")
	m.RecordQueued(ctx)
	m.RecordRecovery(ctx, "failure")
	m.RecordForcedLogout(ctx, "expired")

	sums := collect(t, reader)

	require.Contains(t, sums, "billstock.requests.total")
	assert.Equal(t, int64(2), sums["billstock.requests.total"].DataPoints[0].Value)

	errs := sums["billstock.requests.errors.total"].DataPoints
	require.Len(t, errs, 1)
	kind, ok := errs[0].Attributes.Value(attribute.Key("kind"))
	require.True(t, ok)
	assert.Equal(t, "network", kind.AsString())

	recoveries := sums["billstock.recoveries.total"].DataPoints
	require.Len(t, recoveries, 1)
	outcome, _ := recoveries[0].Attributes.Value(attribute.Key("outcome"))
	assert.Equal(t, "failure", outcome.AsString())

	assert.Equal(t, int64(1), sums["billstock.requests.queued.total"].DataPoints[0].Value)
	assert.Equal(t, int64(1), sums["billstock.sessions.forced_logout.total"].DataPoints[0].Value)
}

func TestGetMetrics_Singleton(t *testing.T) {
	assert.Same(t, GetMetrics(), GetMetrics())
}
