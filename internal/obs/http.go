package obs

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kuitang/forge-e2e/internal/logutil"
)

// ResponseRecorder tracks response status and bytes written.
type ResponseRecorder struct {
	http.ResponseWriter
	statusCode  int
	respBytes   int64
	wroteHeader bool
}

func (r *ResponseRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.statusCode = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *ResponseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.statusCode = http.StatusOK
		r.wroteHeader = true
	}
	n, err := r.ResponseWriter.Write(p)
	r.respBytes += int64(n)
	return n, err
}

func (r *ResponseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *ResponseRecorder) StatusCode() int {
	return r.statusCode
}

func (r *ResponseRecorder) RespBytes() int64 {
	return r.respBytes
}

// AccessLogMiddleware emits one structured access event per request served by
// the in-process forge.
func AccessLogMiddleware(pkg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &ResponseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			durMS := float64(time.Since(start).Microseconds()) / 1000.0
			From(r.Context()).
				With("pkg", pkg).
				Debug(
					"http_access",
					"method", r.Method,
					"path", r.URL.Path,
					"status", recorder.StatusCode(),
					"dur_ms", durMS,
					"resp_bytes", recorder.RespBytes(),
				)
		})
	}
}

// Transport logs every outgoing request with redacted headers.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	l := t.Logger
	if l == nil {
		l = From(req.Context())
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	durMS := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		l.Warn("http_request_failed",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"dur_ms", durMS,
			"error", err,
		)
		return nil, err
	}
	l.Debug("http_request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"dur_ms", durMS,
		"headers", logutil.FormatHeadersForLog(req.Header),
	)
	return resp, nil
}
