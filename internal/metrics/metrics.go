// Package metrics defines the Prometheus metrics of the service. Metrics are
// registered with the default registry on import and exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"chatroom-auth-service/internal/apperr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatroom"

// AuthOperationsTotal counts register, login, logout and session calls.
// Labels:
//   - op: "register", "login", "logout", "continue_session"
//   - result: see Result
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of auth operations, by operation and result.",
	},
	[]string{"op", "result"},
)

// SessionValidationsTotal counts session checks.
// Label:
//   - result: "valid", "invalid" or "error"
var SessionValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_validations_total",
		Help:      "Total number of session validations, by result.",
	},
	[]string{"result"},
)

// ChatroomOperationsTotal counts chatroom create, fetch and join calls.
// Labels:
//   - op: "create", "fetch", "fetch_known", "join"
//   - result: see Result
var ChatroomOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chatroom_operations_total",
		Help:      "Total number of chatroom operations, by operation and result.",
	},
	[]string{"op", "result"},
)

// HTTPRequestDuration measures handler latency.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"path", "status"},
)

// Result turns an operation error into a low-cardinality label value
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	switch apperr.Kind(err) {
	case apperr.ErrStorageUnavailable:
		return "unavailable"
	case apperr.ErrNotFound:
		return "not_found"
	case apperr.ErrConflict:
		return "conflict"
	case apperr.ErrForbidden:
		return "forbidden"
	case apperr.ErrInvalidSession:
		return "invalid_session"
	case apperr.ErrInvalidInput:
		return "invalid_input"
	default:
		return "error"
	}
}

// ObserveAuth records the outcome of an auth operation
func ObserveAuth(op string, err error) {
	AuthOperationsTotal.WithLabelValues(op, Result(err)).Inc()
}

// ObserveChatroom records the outcome of a chatroom operation
func ObserveChatroom(op string, err error) {
	ChatroomOperationsTotal.WithLabelValues(op, Result(err)).Inc()
}

// ObserveSession records the outcome of a session validation
func ObserveSession(valid bool, err error) {
	result := "invalid"
	switch {
	case err != nil:
		result = "error"
	case valid:
		result = "valid"
	}
	SessionValidationsTotal.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware measures request duration per path and status
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		HTTPRequestDuration.
			WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
