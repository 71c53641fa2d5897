// ABOUTME: OpenTelemetry spans for the ingestion and query paths
// ABOUTME: Uses the global provider, which is a no-op unless the host installs one
package core

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/harper/askdocs/internal/core")

// endSpan records err on span (if any) and ends it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
