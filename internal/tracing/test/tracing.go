package test

import (
	"context"

	"github.com/polybot/polybot/internal/logger"
	"github.com/polybot/polybot/internal/tracing"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer that drops every span
func Tracer(log *logger.Logger) *tracing.Tracer {
	tp := trace.NewNoopTracerProvider()
	return &tracing.Tracer{
		ServiceName:    "test",
		Log:            log,
		TracerProvider: tp,
		ShutdownFunc: func(context.Context) error {
			return nil
		},
		TracerInstance: tp.Tracer("test"),
	}
}
