package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestObservability_RecordsRunMetrics(t *testing.T) {
	reader := metric.NewManualReader()
	obs := NewWithReader(reader, "facecast-test")
	defer obs.Shutdown()

	ctx := context.Background()
	obs.RecordRun(ctx, 1500*time.Millisecond, "completed")
	obs.RecordItems(ctx, 4, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}
	assert.True(t, names["runs.processed"])
	assert.True(t, names["runs.duration"])
	assert.True(t, names["runs.items"])
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability
	obs.RecordRun(context.Background(), time.Second, "completed")
	obs.RecordItems(context.Background(), 1, 0)
	obs.Shutdown()
}
