package logging

import (
	"io"
	"net"
	"net/http"
	"os"
	"time"

	logrustash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// New builds the application logger: JSON lines on stdout, optionally
// shipped to logstash over TCP.
func New(level, logstashAddr string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if logstashAddr != "" {
		conn, err := net.Dial("tcp", logstashAddr)
		if err != nil {
			logger.WithError(err).WithField("addr", logstashAddr).Warn("Logstash unreachable, logging to stdout only")
		} else {
			logger.Hooks.Add(logrustash.New(conn, logrustash.DefaultFormatter(logrus.Fields{"type": "warbler"})))
		}
	}
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware logs every request once it completes. Requests slower than
// slow are reported at warn level.
func Middleware(logger *logrus.Logger, slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			requestID := uuid.NewString()
			w.Header().Set("X-Request-Id", requestID)

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			entry := logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   duration,
				"remote_ip":  r.RemoteAddr,
			})
			if duration > slow {
				entry.Warn("Slow request detected")
			} else {
				entry.Info("Request completed")
			}
		})
	}
}
