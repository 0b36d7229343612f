// Package pipeline runs the linear ETL task graph: fetch → impute →
// load → archive. It owns no scheduling: the runner executes once and
// surfaces per-step outcomes, leaving retries and cron semantics to
// the host scheduler.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tubemetrics/trendpipe/internal/metrics"
)

// Step is one pipeline stage.
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context) error
}

// Name returns the step name
func (s StepFunc) Name() string { return s.StepName }

// Run invokes the function
func (s StepFunc) Run(ctx context.Context) error { return s.Fn(ctx) }

// Result is the outcome of one step.
type Result struct {
	Step     string        `json:"step"`
	Status   string        `json:"status"` // "ok", "failed", "skipped"
	Duration time.Duration `json:"-"`
	Err      error         `json:"-"`
}

type resultJSON struct {
	Step     string `json:"step"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
}

// MarshalJSON renders the duration human-readable ("1.52s"), not as
// raw nanoseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{Step: r.Step, Status: r.Status, Duration: r.Duration.String()})
}

// UnmarshalJSON parses the wire form produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d, err := time.ParseDuration(w.Duration)
	if err != nil {
		return fmt.Errorf("parse step duration: %w", err)
	}
	r.Step, r.Status, r.Duration = w.Step, w.Status, d
	return nil
}

// Runner executes steps in order, fail-fast. Steps after a failure are
// reported as skipped.
type Runner struct {
	steps   []Step
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRunner creates a runner. metrics may be nil.
func NewRunner(logger *zap.Logger, m *metrics.Metrics, steps ...Step) *Runner {
	return &Runner{steps: steps, logger: logger, metrics: m}
}

// Run executes the pipeline once. The returned error names the failed
// step; results cover every step either way.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(r.steps))
	var failed error

	for _, step := range r.steps {
		if failed != nil {
			results = append(results, Result{Step: step.Name(), Status: "skipped"})
			continue
		}

		r.logger.Info("step starting", zap.String("step", step.Name()))
		start := time.Now()
		err := step.Run(ctx)
		elapsed := time.Since(start)

		if r.metrics != nil {
			r.metrics.StepDuration.WithLabelValues(step.Name()).Observe(elapsed.Seconds())
		}

		if err != nil {
			failed = fmt.Errorf("step %s: %w", step.Name(), err)
			results = append(results, Result{Step: step.Name(), Status: "failed", Duration: elapsed, Err: err})
			r.logger.Error("step failed",
				zap.String("step", step.Name()),
				zap.Duration("duration", elapsed),
				zap.Error(err))
			continue
		}

		results = append(results, Result{Step: step.Name(), Status: "ok", Duration: elapsed})
		r.logger.Info("step complete",
			zap.String("step", step.Name()),
			zap.Duration("duration", elapsed))
	}

	if r.metrics != nil {
		status := "ok"
		if failed != nil {
			status = "failed"
		}
		r.metrics.RunsTotal.WithLabelValues(status).Inc()
	}
	return results, failed
}
