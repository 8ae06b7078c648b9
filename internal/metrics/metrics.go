// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroll_qr_sessions_created_total",
		Help: "QR attendance sessions generated.",
	})

	// SessionsEnded is labelled by reason: "teacher", "expired" or "replaced".
	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroll_qr_sessions_ended_total",
		Help: "QR attendance sessions deactivated.",
	}, []string{"reason"})

	// Scans is labelled by result: "ok", "malformed", "invalid", "expired", "not_enrolled", "error".
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroll_scans_total",
		Help: "QR scans verified, by outcome.",
	}, []string{"result"})

	AttendanceSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroll_attendance_saves_total",
		Help: "Attendance sheets saved by teachers.",
	})

	CheckinsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroll_checkins_recorded_total",
		Help: "Attendance rows written from QR check-ins.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classroll_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// GinMiddleware observes request latency keyed by the matched route pattern.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
