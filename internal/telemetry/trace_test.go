package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestExecuteAndTrace(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	attrs := []attribute.KeyValue{attribute.String("run_id", "r1")}

	called := false
	err := ExecuteAndTrace(context.Background(), tracer, "op", attrs, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)

	boom := errors.New("boom")
	err = ExecuteAndTrace(context.Background(), tracer, "op", attrs, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTracer(t *testing.T) {
	assert.NotNil(t, Tracer("resilience"))
}
