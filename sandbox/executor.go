package sandbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/datalyst/datalyst/artifact"
	"github.com/datalyst/datalyst/dataset"
)

const DefaultTimeout = 2 * time.Minute

// Execution is the deterministic capture of one code run: printed output, an
// optional rendered return value, the figures the code appended, and the
// error trace if it raised. Partial progress survives a failure.
type Execution struct {
	Stdout    string
	Result    string
	HasResult bool
	Figures   []artifact.Ref
	Error     string
}

// Render formats the execution for the conversation, section by section. An
// execution with nothing to show renders as a completion notice.
func (x *Execution) Render() string {
	var parts []string

	if x.Stdout != "" {
		parts = append(parts, "STDOUT:\n"+x.Stdout)
	}
	if x.HasResult {
		parts = append(parts, "RESULT:\n"+x.Result)
	}
	for _, ref := range x.Figures {
		parts = append(parts, "FIGURE SAVED: "+string(ref))
	}
	if x.Error != "" {
		parts = append(parts, "ERROR:\n"+x.Error)
	}

	if len(parts) == 0 {
		return "Tool execution completed successfully."
	}
	return strings.Join(parts, "\n\n")
}

type ExecutorOptions struct {
	Runner  Runner
	Timeout time.Duration
	Metrics *prometheus.Registry
}

func DefaultExecutorOptions() *ExecutorOptions {
	return &ExecutorOptions{
		Runner:  NewPythonRunner(),
		Timeout: DefaultTimeout,
	}
}

type ExecutorOption func(*ExecutorOptions)

func WithRunner(runner Runner) ExecutorOption {
	return func(o *ExecutorOptions) {
		o.Runner = runner
	}
}

func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(o *ExecutorOptions) {
		o.Timeout = timeout
	}
}

func WithMetrics(metrics *prometheus.Registry) ExecutorOption {
	return func(o *ExecutorOptions) {
		o.Metrics = metrics
	}
}

// Executor runs analyst-authored code against a dataset and captures its
// side effects. The dataset is an explicit argument on every call.
type Executor struct {
	runner    Runner
	artifacts *artifact.Store
	timeout   time.Duration
	metrics   *executorMetrics
}

func NewExecutor(artifacts *artifact.Store, opts ...ExecutorOption) *Executor {
	options := DefaultExecutorOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Executor{
		runner:    options.Runner,
		artifacts: artifacts,
		timeout:   options.Timeout,
		metrics:   newExecutorMetrics(options.Metrics),
	}
}

func (e *Executor) Execute(ctx context.Context, code string, ds *dataset.Dataset) (*Execution, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is required")
	}

	csv, err := ds.CSV()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize dataset: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.runner.Run(ctx, &Request{
		Code:       CleanCode(code),
		DatasetCSV: csv,
	})
	if err != nil {
		// A blown deadline is data the model can react to, not a turn
		// failure.
		if errors.Is(err, context.DeadlineExceeded) {
			e.metrics.observe(start, "timeout")
			return &Execution{
				Error: fmt.Sprintf("Execution exceeded the %s deadline and was terminated.", e.timeout),
			}, nil
		}
		e.metrics.observe(start, "failure")
		return nil, err
	}

	execution := &Execution{
		Stdout:    resp.Stdout,
		Result:    resp.Result,
		HasResult: resp.HasResult,
		Error:     resp.Error,
	}

	for _, encoded := range resp.Figures {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode figure: %w", err)
		}
		ref, err := e.artifacts.Save(data)
		if err != nil {
			return nil, fmt.Errorf("failed to store figure: %w", err)
		}
		execution.Figures = append(execution.Figures, ref)
	}

	outcome := "success"
	if execution.Error != "" {
		outcome = "error"
	}
	e.metrics.observe(start, outcome)
	e.metrics.figures.Add(float64(len(execution.Figures)))

	return execution, nil
}

type executorMetrics struct {
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
	figures    prometheus.Counter
}

func newExecutorMetrics(registry *prometheus.Registry) *executorMetrics {
	m := &executorMetrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_executions_total",
			Help: "Sandbox executions by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sandbox_execution_duration_seconds",
			Help:    "Wall-clock duration of sandbox executions.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		figures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sandbox_figures_total",
			Help: "Figures captured from sandbox executions.",
		}),
	}

	if registry != nil {
		registry.MustRegister(m.executions, m.duration, m.figures)
	}

	return m
}

func (m *executorMetrics) observe(start time.Time, outcome string) {
	m.duration.Observe(time.Since(start).Seconds())
	m.executions.WithLabelValues(outcome).Inc()
}
