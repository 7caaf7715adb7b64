// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// LogTransport wraps next (http.DefaultTransport when nil) so every outgoing
// request is logged with its method, path, status and duration. Query
// strings are never logged because they may carry bearer tokens.
func LogTransport(logger *logrus.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)

		fields := logrus.Fields{
			"method":   r.Method,
			"host":     r.URL.Host,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}
		if err != nil {
			fields["error"] = err
			logger.WithFields(fields).Warn("HTTP Request failed")
			return resp, err
		}
		fields["status"] = resp.StatusCode
		logger.WithFields(fields).Debug("HTTP Request")
		return resp, nil
	})
}

// LogChannelOpen logs a message when the duel channel opens.
func LogChannelOpen(logger *logrus.Logger, connID string, target string) {
	logger.WithFields(logrus.Fields{
		"conn":   connID,
		"target": target,
	}).Info("WebSocket connected")
}

// LogChannelClose logs a message when the duel channel closes.
func LogChannelClose(logger *logrus.Logger, connID string, code int, err error) {
	fields := logrus.Fields{
		"conn": connID,
		"code": code,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
