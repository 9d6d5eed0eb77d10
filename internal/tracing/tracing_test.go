package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestSetupDisabledInstallsPropagator(t *testing.T) {
	shutdown, err := Setup(Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestSetupEnabledRequiresEndpoint(t *testing.T) {
	_, err := Setup(Config{Enabled: true})
	require.Error(t, err)
}

func TestNewTraceProviderSetsServiceName(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := newTraceProvider(exp, "solite-post")
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	val, ok := spans[0].Resource.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	require.Equal(t, "solite-post", val.AsString())
	require.NoError(t, tp.Shutdown(context.Background()))
}
