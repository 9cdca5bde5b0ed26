package gateway

import (
	"context"
	"time"

	"github.com/clinicai/visitflow/internal/platform/telemetry"
)

// instrumented wraps a Client and records per-operation request counts and
// latencies.
type instrumented struct {
	inner   Client
	metrics *telemetry.Metrics
}

// WithMetrics decorates a gateway client with Prometheus instrumentation.
func WithMetrics(c Client, m *telemetry.Metrics) Client {
	if m == nil {
		m = telemetry.Default
	}
	return &instrumented{inner: c, metrics: m}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	i.metrics.GatewayRequests.WithLabelValues(op, outcome).Inc()
	i.metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) StartIntake(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	start := time.Now()
	res, err := i.inner.StartIntake(ctx, req)
	i.observe("start_intake", start, err)
	return res, err
}

func (i *instrumented) NextQuestion(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	start := time.Now()
	res, err := i.inner.NextQuestion(ctx, req)
	i.observe("next_question", start, err)
	return res, err
}

func (i *instrumented) EditAnswer(ctx context.Context, patientID, visitID string, questionNumber int, newAnswer string) error {
	start := time.Now()
	err := i.inner.EditAnswer(ctx, patientID, visitID, questionNumber, newAnswer)
	i.observe("edit_answer", start, err)
	return err
}

func (i *instrumented) GeneratePreVisit(ctx context.Context, vc VisitContext) (*PreVisitSummary, error) {
	start := time.Now()
	res, err := i.inner.GeneratePreVisit(ctx, vc)
	i.observe("previsit_summary", start, err)
	return res, err
}

func (i *instrumented) GenerateSOAP(ctx context.Context, vc VisitContext) (*SOAPNote, error) {
	start := time.Now()
	res, err := i.inner.GenerateSOAP(ctx, vc)
	i.observe("soap_note", start, err)
	return res, err
}

func (i *instrumented) GeneratePostVisit(ctx context.Context, vc VisitContext) (*PostVisitSummary, error) {
	start := time.Now()
	res, err := i.inner.GeneratePostVisit(ctx, vc)
	i.observe("postvisit_summary", start, err)
	return res, err
}
