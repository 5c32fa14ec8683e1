package security

import (
	"errors"
	"io"
	"net/http"

	"github.com/noah-isme/digital-store/internal/common"
)

// BodyLimit caps request payloads. Cart and checkout bodies are a few hundred bytes,
// so anything larger is rejected before a handler starts decoding it.
type BodyLimit struct {
	Max int64
}

// Middleware answers 413 PAYLOAD_TOO_LARGE for declared or actual oversized bodies.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			tooLarge(w, b.Max)
			return
		}
		r.Body = &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, b.Max)}
		rec := &limitRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.exceeded(r) && !rec.wrote {
			tooLarge(w, b.Max)
		}
	})
}

func tooLarge(w http.ResponseWriter, max int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", map[string]int64{"maxBytes": max})
}

type limitedBody struct {
	io.ReadCloser
	hit bool
}

func (l *limitedBody) Read(p []byte) (int, error) {
	n, err := l.ReadCloser.Read(p)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		l.hit = true
	}
	return n, err
}

type limitRecorder struct {
	http.ResponseWriter
	wrote bool
}

func (l *limitRecorder) WriteHeader(code int) {
	l.wrote = true
	l.ResponseWriter.WriteHeader(code)
}

func (l *limitRecorder) Write(p []byte) (int, error) {
	l.wrote = true
	return l.ResponseWriter.Write(p)
}

func (l *limitRecorder) exceeded(r *http.Request) bool {
	body, ok := r.Body.(*limitedBody)
	return ok && body.hit
}
