// Package telemetry provides Prometheus metrics for the visit workflow.
package telemetry

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "visitflow"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Generation gateway metrics
	GatewayRequests *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	GatewayRetries  prometheus.Counter

	// Workflow metrics
	StageTransitions   *prometheus.CounterVec
	IntakeCompleted    prometheus.Counter
	AnswersSubmitted   prometheus.Counter
	AnswerEdits        prometheus.Counter
	GenerationConflict prometheus.Counter

	// Transcript normalizer metrics
	NormalizerStrategy *prometheus.CounterVec
}

// Default is the global metrics instance.
var Default = New()

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return newWith(prometheus.DefaultRegisterer)
}

func newWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Generation gateway calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_seconds",
			Help:      "Generation gateway call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"operation"}),
		GatewayRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_retries_total",
			Help:      "Gateway call retries after connectivity failures",
		}),
		StageTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Visit stage transitions by target stage",
		}, []string{"stage"}),
		IntakeCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_completed_total",
			Help:      "Intake sessions that reached completion",
		}),
		AnswersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Intake answers accepted",
		}),
		AnswerEdits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_edits_total",
			Help:      "Retroactive answer edits applied",
		}),
		GenerationConflict: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_conflicts_total",
			Help:      "Duplicate generation attempts rejected while one was in flight",
		}),
		NormalizerStrategy: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_strategy_total",
			Help:      "Transcript normalizations by winning strategy",
		}, []string{"strategy"}),
	}
}

// Handler returns an echo handler serving the Prometheus exposition endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
