// Package metrics exposes Prometheus counters for attendance activity
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Attendance = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dawam",
		Name:      "attendance_records_total",
		Help:      "Attendance records appended, by kind.",
	}, []string{"kind"})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dawam",
		Name:      "rejections_total",
		Help:      "Attendance and task actions rejected by a guard, by reason.",
	}, []string{"action", "reason"})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dawam",
		Name:      "tasks_completed_total",
		Help:      "Tasks moved to completed.",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dawam",
		Name:      "notifications_total",
		Help:      "Notifications stored, by urgency and push outcome.",
	}, []string{"urgency", "push"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dawam",
		Name:      "active_sessions",
		Help:      "Signed-in sessions with running background loops.",
	})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
