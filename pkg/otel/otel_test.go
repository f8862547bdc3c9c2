package otel

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_WithoutExporter(t *testing.T) {
	shutdown, err := Init(t.Context(), Config{ServiceName: "toolwire-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestInit_StdoutExporterWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(t.Context(), Config{ServiceName: "toolwire-test", UseStdout: true, Writer: &buf})
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "Loop.Run")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "Loop.Run"`)
	assert.Contains(t, buf.String(), "toolwire-test")
}

func ratio(f float64) *float64 { return &f }

func TestSampler(t *testing.T) {
	always := sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()
	assert.Equal(t, always, sampler(nil).Description())
	assert.Equal(t, always, sampler(ratio(1)).Description())
	assert.Equal(t, sdktrace.ParentBased(sdktrace.NeverSample()).Description(), sampler(ratio(0)).Description())
	assert.True(t, strings.Contains(sampler(ratio(0.25)).Description(), "TraceIDRatioBased{0.25}"), sampler(ratio(0.25)).Description())
}

func TestInit_ZeroRatioRecordsNothing(t *testing.T) {
	shutdown, err := Init(t.Context(), Config{ServiceName: "toolwire-test", SampleRatio: ratio(0)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.False(t, span.SpanContext().IsSampled())
}

func TestHTTPClient_PropagatesTraceContext(t *testing.T) {
	shutdown, err := Init(t.Context(), Config{ServiceName: "toolwire-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	var traceparent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
	}))
	defer ts.Close()

	ctx, span := Tracer("test").Start(context.Background(), "client")
	defer span.End()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	res, err := HTTPClient().Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}
