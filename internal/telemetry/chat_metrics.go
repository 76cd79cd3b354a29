package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	messagesRouted   metric.Int64Counter
	routeErrors      metric.Int64Counter
	publishFailures  metric.Int64Counter
	flowTransitions  metric.Int64Counter
	uploadRejections metric.Int64Counter
)

// InitChatMetrics creates the chat instruments on the global meter.
func InitChatMetrics() error {
	meter := otel.Meter("livechat.chat")

	var err error
	if messagesRouted, err = meter.Int64Counter(
		"chat.messages.routed",
		metric.WithDescription("Messages persisted by the router"),
		metric.WithUnit("{message}"),
	); err != nil {
		return err
	}
	if routeErrors, err = meter.Int64Counter(
		"chat.messages.errors",
		metric.WithDescription("Messages that failed to persist"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	if publishFailures, err = meter.Int64Counter(
		"chat.realtime.publish_failures",
		metric.WithDescription("Realtime publishes the relay rejected"),
		metric.WithUnit("{event}"),
	); err != nil {
		return err
	}
	if flowTransitions, err = meter.Int64Counter(
		"chat.flow.transitions",
		metric.WithDescription("Onboarding flow step changes"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return err
	}
	if uploadRejections, err = meter.Int64Counter(
		"chat.files.rejected",
		metric.WithDescription("Uploads refused by validation"),
		metric.WithUnit("{file}"),
	); err != nil {
		return err
	}
	return nil
}

func RecordMessageRouted(ctx context.Context, senderType, kind string) {
	if messagesRouted != nil {
		messagesRouted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("sender_type", senderType),
			attribute.String("kind", kind),
		))
	}
}

func RecordRouteError(ctx context.Context, senderType string) {
	if routeErrors != nil {
		routeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sender_type", senderType)))
	}
}

// RecordPublishFailure counts a failed publish on the session or operator channel group.
func RecordPublishFailure(ctx context.Context, target, event string) {
	if publishFailures != nil {
		publishFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("target", target),
			attribute.String("event", event),
		))
	}
}

func RecordFlowTransition(ctx context.Context, from, to string) {
	if flowTransitions != nil {
		flowTransitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
	}
}

func RecordUploadRejected(ctx context.Context, reason string) {
	if uploadRejections != nil {
		uploadRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}
