// Package otel provides OpenTelemetry tracing helpers shared by the store
// and the HTTP layer.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for campaign entities
const (
	AttrEntityName  = attribute.Key("campaign.entity")
	AttrTableName   = attribute.Key("campaign.table")
	AttrRecordID    = attribute.Key("campaign.record_id")
	AttrPageSize    = attribute.Key("pagination.limit")
	AttrPageOffset  = attribute.Key("pagination.offset")
	AttrResultCount = attribute.Key("result.count")
)

// DBSystem returns the semantic convention attribute for a database driver
func DBSystem(driver string) attribute.KeyValue {
	if driver == "sqlite" {
		return semconv.DBSystemSqlite
	}
	return semconv.DBSystemPostgreSQL
}

// StartSpan starts a span when tracer is set, otherwise it returns the span
// already in ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. The status text is
// generic so SQL and connection details stay out of span status; the error
// itself is kept in the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
