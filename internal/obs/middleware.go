package obs

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/digital-store/internal/common"
)

// StatusRecorder remembers the status and body size a handler produced. The first
// WriteHeader wins, matching net/http.
type StatusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
	wrote   bool
}

// NewStatusRecorder wraps w. Handlers that never call WriteHeader report 200.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *StatusRecorder) WriteHeader(code int) {
	if !sr.wrote {
		sr.status = code
		sr.wrote = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *StatusRecorder) Write(p []byte) (int, error) {
	sr.wrote = true
	n, err := sr.ResponseWriter.Write(p)
	sr.written += int64(n)
	return n, err
}

// Flush forwards to the wrapped writer when it supports streaming.
func (sr *StatusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *StatusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

func (sr *StatusRecorder) Status() int { return sr.status }

func (sr *StatusRecorder) BytesWritten() int64 { return sr.written }

// HTTPObs instruments HTTP handlers with metrics.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

// Middleware records request counts, latency and response sizes per route pattern.
func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	if o.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewStatusRecorder(w)
		o.Metrics.InFlight.Inc()
		start := time.Now()
		defer o.Metrics.InFlight.Dec()
		next.ServeHTTP(recorder, r)

		route := RoutePattern(r, "unknown")
		o.Metrics.ReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.Status())).Inc()
		o.Metrics.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(start)))
		if o.Metrics.RespBytes != nil {
			o.Metrics.RespBytes.WithLabelValues(route).Observe(float64(recorder.BytesWritten()))
		}
	})
}

// TracingMiddleware starts a server span per request, continuing any trace propagated by the caller.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("digital-store/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		recorder := NewStatusRecorder(w)
		r = r.WithContext(ctx)
		next.ServeHTTP(recorder, r)

		route := RoutePattern(r, r.URL.Path)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", recorder.Status()),
		)
		if sid, ok := common.SessionID(r.Context()); ok {
			span.SetAttributes(attribute.String("storefront.session_id", sid))
		}
		if recorder.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.Status()))
		}
	})
}
