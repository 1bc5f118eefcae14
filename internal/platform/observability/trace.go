package observability

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kograph/api/internal/platform/requestctx"
)

const tracerName = "github.com/kograph/api"

// TraceMiddleware parses the X-Cloud-Trace-Context header, opens a server
// span per request, and exposes the trace id through the request context.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := parseCloudTraceHeader(r.Header.Get("X-Cloud-Trace-Context"))
			info.ProjectID = projectID

			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", SanitizeURL(r.URL)),
				),
			)
			defer span.End()

			if info.TraceID == "" {
				info.TraceID = span.SpanContext().TraceID().String()
			}
			ctx = requestctx.WithTrace(ctx, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseCloudTraceHeader understands "TRACE_ID/SPAN_ID;o=1" as sent by Google
// front ends.
func parseCloudTraceHeader(header string) requestctx.TraceInfo {
	var info requestctx.TraceInfo
	if header == "" {
		return info
	}

	rest := header
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		info.Sampled = strings.Contains(rest[i:], "o=1")
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		info.SpanID = rest[i+1:]
		rest = rest[:i]
	}
	info.TraceID = rest
	return info
}
