package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

func TestNewResource(t *testing.T) {
	res, err := newResource("sol-ingest")
	require.NoError(t, err)

	found := false
	for _, attr := range res.Attributes() {
		if attr.Key == semconv.ServiceNameKey {
			assert.Equal(t, "sol-ingest", attr.Value.AsString())
			found = true
		}
	}
	assert.True(t, found)
}

func TestInit(t *testing.T) {
	// exporter 延迟连接，未启动 collector 时初始化也应成功
	mp, shutdown, err := Init(context.Background(), "sol-ingest-test")
	require.NoError(t, err)
	require.NotNil(t, mp)
	assert.Equal(t, mp, otel.GetMeterProvider())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
