package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id of outbound HTTP calls
const RequestIDHeader = "X-Request-ID"

type roundTripper struct {
	next   http.RoundTripper
	logger Logger
}

// NewRoundTripper wraps next so that every outbound HTTP exchange gets a
// request id header and a debug log line with status and latency.
func NewRoundTripper(next http.RoundTripper, logger Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{next: next, logger: logger.WithFields(Component("http"))}
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = RequestIDFromContext(req.Context())
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, requestID)

	reqLogger := rt.logger.WithFields(
		String("request_id", requestID),
		String("http_method", req.Method),
		String("url", req.URL.Redacted()),
	)

	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	if err != nil {
		reqLogger.WithError(err).Debug("HTTP request failed", Duration("duration", time.Since(start)))
		return nil, err
	}

	reqLogger.Debug("HTTP request completed",
		Int("status", resp.StatusCode),
		String("content_type", resp.Header.Get("Content-Type")),
		Duration("duration", time.Since(start)),
	)
	return resp, nil
}
