package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/digital-store/internal/common"
)

// NewLogger builds the process logger. format "console" or "text" selects the human
// readable writer, anything else emits JSON lines on stdout.
func NewLogger(format, level string) zerolog.Logger {
	return newLogger(os.Stdout, format, level)
}

func newLogger(w io.Writer, format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// RequestLogger emits one http_request line per request. Server errors log at error
// level, client errors at warn, the rest at info.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware also stores a child logger tagged with the request and session ids on the
// request context, for handlers and services that log through zerolog.Ctx.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewStatusRecorder(w)

		child := l.Logger.With().Str("request_id", middleware.GetReqID(r.Context()))
		if sid, ok := common.SessionID(r.Context()); ok {
			child = child.Str("session_id", sid)
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			child = child.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		reqLogger := child.Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		next.ServeHTTP(rec, r)

		status := rec.Status()
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = reqLogger.Error()
		case status >= http.StatusBadRequest:
			evt = reqLogger.Warn()
		default:
			evt = reqLogger.Info()
		}
		evt.Str("method", r.Method).
			Str("route", RoutePattern(r, r.URL.Path)).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int64("bytes", rec.BytesWritten()).
			Str("client_ip", common.ClientIP(r)).
			Str("user_agent", r.UserAgent()).
			Msg("http_request")
	})
}
