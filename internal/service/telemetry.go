package service

import (
	"context"
	"fmt"

	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/pkg/validator"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("go-warehouse-fulfillment/internal/service")

// finishSpan records err on the span and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.kind", string(KindOf(err))))
	}
	span.End()
}

func actorAttr(actor model.Principal) attribute.KeyValue {
	return attribute.String("actor.id", actor.String())
}

// publish sends a committed event; delivery failures never fail the caller.
func publish(ctx context.Context, publisher event.Publisher, logger *zap.Logger, ev event.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, ev); err != nil {
		logger.Warn("event publish failed",
			zap.String("action", ev.Action),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err),
		)
	}
}

// validateRequest runs the validator tags and reports the first failure.
func validateRequest(req interface{}) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return validationError("%s", errs[0].Error())
	}
	return nil
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func orNopPublisher(p event.Publisher) event.Publisher {
	if p == nil {
		return event.Nop{}
	}
	return p
}

func actorName(actor model.Principal) string {
	if actor.Name != "" {
		return actor.Name
	}
	return actor.String()
}

func describe(actor model.Principal, format string, args ...interface{}) string {
	return fmt.Sprintf("%s %s", actorName(actor), fmt.Sprintf(format, args...))
}
