package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracing_ExportsSpansToWriter(t *testing.T) {
	// GIVEN tracing initialized with a buffer as the exporter's writer
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := initTracing(ctx, tracingConfig{ServiceName: "etas-sim-test", Writer: &buf})
	require.NoError(t, err)

	// WHEN a span ends and the provider shuts down
	_, span := otel.Tracer("test").Start(ctx, "ensemble.Run")
	span.End()
	require.NoError(t, shutdown(ctx))

	// THEN the span was flushed to the writer
	assert.Contains(t, buf.String(), "ensemble.Run")
	assert.Contains(t, buf.String(), "etas-sim-test")
}

func TestInitTracing_WithoutWriter(t *testing.T) {
	shutdown, err := initTracing(context.Background(), tracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
