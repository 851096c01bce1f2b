package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questtracker_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "questtracker_request_duration_seconds",
			Help: "Request duration seconds",
		},
		[]string{"method", "path"},
	)

	// ExperienceAwarded is labelled by the award source: task, challenge or manual.
	ExperienceAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questtracker_experience_awarded_total",
			Help: "Experience points awarded to users",
		},
		[]string{"source"},
	)

	TaskCompletions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questtracker_task_completions_total",
		Help: "Incomplete to complete task transitions",
	})

	ChallengesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questtracker_challenges_completed_total",
		Help: "Challenges that crossed their required count",
	})

	BadgesGranted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questtracker_badges_granted_total",
		Help: "Badges created by challenge completion",
	})
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ReqCount, ReqDuration, ExperienceAwarded, TaskCompletions, ChallengesCompleted, BadgesGranted)
	})
}
