package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTableCarrier_PropagatesTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := amqp.Table{}
	prop := propagation.TraceContext{}
	prop.Inject(ctx, tableCarrier{table: headers})
	assert.Contains(t, tableCarrier{table: headers}.Keys(), "traceparent")

	got := trace.SpanContextFromContext(prop.Extract(context.Background(), tableCarrier{table: headers}))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
}

func TestTableCarrier_Get(t *testing.T) {
	c := tableCarrier{table: amqp.Table{"s": "v", "n": int32(7)}}
	assert.Equal(t, "v", c.Get("s"))
	assert.Equal(t, "7", c.Get("n"))
	assert.Equal(t, "", c.Get("missing"))
}
