package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/config"
	"github.com/cwbudde/algo-protocol/protocol"
)

var (
	// ErrInvalidInput is returned for a nil plan or context, or a plan
	// channel the context does not provide.
	ErrInvalidInput = errors.New("engine: invalid input")
	// ErrMethodPanic wraps a recovered method panic in a record's error.
	ErrMethodPanic = errors.New("method panicked")
	// ErrContractViolation wraps output shape problems in a record's error.
	ErrContractViolation = errors.New("contract violation")
)

// Runner executes plans. It is safe for concurrent use.
type Runner struct {
	registry       *analysis.Registry
	workers        int
	timeout        time.Duration
	maxArrayLength int
	logger         *slog.Logger
	metrics        *Metrics
	tracer         trace.Tracer
	now            func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithSettings applies the engine section of the tool settings.
func WithSettings(s config.Engine) Option {
	return func(r *Runner) {
		WithWorkers(s.Workers)(r)
		WithRunTimeout(s.RunTimeout)(r)
		WithMaxArrayLength(s.MaxArrayLength)(r)
	}
}

// WithWorkers bounds the number of concurrent invocations. Values below one
// are ignored.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.workers = n
		}
	}
}

// WithRunTimeout sets the run deadline. Zero disables it.
func WithRunTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.timeout = d
		}
	}
}

// WithMaxArrayLength caps array-valued metrics.
func WithMaxArrayLength(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.maxArrayLength = n
		}
	}
}

// WithLogger sets the logger for invocation failures and deadline expiry.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracerProvider sets the OpenTelemetry provider for run and
// invocation spans. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) {
		if tp != nil {
			r.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithClock replaces time.Now for the document timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a runner resolving methods in reg. reg is frozen, so
// no method can be registered once a runner uses it.
func NewRunner(reg *analysis.Registry, opts ...Option) *Runner {
	defaults := config.Default().Engine

	r := &Runner{
		registry:       reg.Freeze(),
		workers:        defaults.Workers,
		timeout:        defaults.RunTimeout,
		maxArrayLength: defaults.MaxArrayLength,
		logger:         slog.New(slog.DiscardHandler),
		tracer:         defaultTracer(),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type job struct {
	family     analysis.Family
	desc       analysis.Descriptor
	invocation int
	channel    string
	params     analysis.Params
}

type outcome struct {
	index   int
	record  Record
	vis     map[string]any
	elapsed time.Duration
}

// Run executes every invocation of plan on every plan channel. The returned
// VisualizationDocument is nil unless the plan enables visualization. An
// error is returned only when the inputs cannot describe a run; method
// failures and deadline expiry are recorded in the document.
func (r *Runner) Run(
	ctx context.Context,
	plan *protocol.Plan,
	ec *analysis.ExecutionContext,
) (*ResultDocument, *VisualizationDocument, error) {
	if plan == nil || ec == nil {
		return nil, nil, fmt.Errorf("%w: nil plan or execution context", ErrInvalidInput)
	}

	jobs, err := r.expand(plan, ec)
	if err != nil {
		return nil, nil, err
	}

	runID := RunID(plan.Source, ec).String()

	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ctx, span := r.startRun(ctx, runID, len(jobs))
	defer span.End()

	slots, deadline := r.execute(ctx, jobs, ec)

	doc := &ResultDocument{
		Meta: Meta{
			RunID:           runID,
			ProtocolVersion: plan.Version,
			Timestamp:       r.now().UTC(),
			SampleRate:      ec.SampleRate(),
			Channels:        slices.Clone(plan.Channels),
			MaxArrayLength:  r.maxArrayLength,
			Preprocessing:   ec.Preprocessing(),
			Warnings:        slices.Clone(plan.Warnings),
		},
		Analyses: make([]Record, len(jobs)),
	}

	var vis *VisualizationDocument
	if plan.Visualization.Enabled {
		vis = &VisualizationDocument{RunID: runID, Entries: []VisualizationEntry{}}
	}

	pending := 0

	for i, j := range jobs {
		o := slots[i]
		if o == nil {
			pending++
			o = &outcome{index: i, record: j.record(StatusNotExecuted)}
			o.record.Error = "run deadline exceeded before execution completed"
		}

		doc.Analyses[i] = o.record
		r.metrics.observeRecord(&o.record, o.elapsed)

		switch o.record.Status {
		case StatusOK:
			doc.Meta.Summary.Executed++

			if vis != nil && o.vis != nil {
				vis.Entries = append(vis.Entries, VisualizationEntry{
					Family:     j.family,
					Method:     j.desc.ID,
					Channel:    j.channel,
					Invocation: j.invocation,
					Data:       o.vis,
				})
			}
		case StatusContractViolation:
			doc.Meta.Summary.ContractViolations++
		case StatusNotExecuted:
			doc.Meta.Summary.NotExecuted++
		}
	}

	doc.Meta.Summary.Total = len(jobs)
	doc.Meta.Summary.DeadlineExceeded = deadline

	if deadline {
		r.logger.Warn("run deadline exceeded", "run_id", runID, "pending", pending, "timeout", r.timeout)
	}

	r.metrics.observeRun(deadline)

	return doc, vis, nil
}

// expand flattens the plan into jobs in document order: family, then
// invocation, then channel.
func (r *Runner) expand(plan *protocol.Plan, ec *analysis.ExecutionContext) ([]job, error) {
	available := ec.ChannelNames()

	for _, ch := range plan.Channels {
		if !slices.Contains(available, ch) {
			return nil, fmt.Errorf("%w: channel %q missing from execution context", ErrInvalidInput, ch)
		}
	}

	jobs := make([]job, 0, plan.InvocationCount())

	for _, fp := range plan.Families {
		for _, inv := range fp.Invocations {
			desc, err := r.registry.Resolve(inv.Method)
			if err != nil {
				return nil, fmt.Errorf("engine: %w", err)
			}

			for _, ch := range plan.Channels {
				jobs = append(jobs, job{
					family:     fp.Family,
					desc:       desc,
					invocation: inv.Index,
					channel:    ch,
					params:     inv.Params,
				})
			}
		}
	}

	return jobs, nil
}

// execute runs jobs on a bounded pool. Outcomes are written by this
// goroutine alone, into the slot of their job index. Slots still nil when
// the context ends belong to jobs that never finished.
func (r *Runner) execute(ctx context.Context, jobs []job, ec *analysis.ExecutionContext) ([]*outcome, bool) {
	slots := make([]*outcome, len(jobs))
	results := make(chan outcome, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	go func() {
		for i := range jobs {
			if ctx.Err() != nil {
				break
			}

			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}

				results <- r.invoke(ctx, i, jobs[i], ec)

				return nil
			})
		}

		_ = g.Wait()

		close(results)
	}()

	for {
		select {
		case o, ok := <-results:
			if !ok {
				return slots, false
			}

			slots[o.index] = &o
		case <-ctx.Done():
			drain(results, slots)

			return slots, slices.Contains(slots, nil)
		}
	}
}

func drain(results <-chan outcome, slots []*outcome) {
	for {
		select {
		case o, ok := <-results:
			if !ok {
				return
			}

			slots[o.index] = &o
		default:
			return
		}
	}
}

func (r *Runner) invoke(ctx context.Context, index int, j job, ec *analysis.ExecutionContext) outcome {
	_, span := r.startInvocation(ctx, j)
	start := time.Now()

	samples, _ := ec.Channel(j.channel)

	out, err := call(j.desc.Func, analysis.Input{
		Channel:    j.channel,
		Samples:    samples,
		SampleRate: ec.SampleRate(),
		Context:    ec,
	}, j.params.Clone())

	o := outcome{index: index, elapsed: time.Since(start)}

	if err == nil {
		o.record, o.vis, err = r.conform(j, out)
	}

	if err != nil {
		o.record = j.record(StatusContractViolation)
		o.record.Error = err.Error()
		o.vis = nil

		span.RecordError(err)
		r.logger.Warn("invocation failed",
			"family", j.family,
			"method", j.desc.ID,
			"channel", j.channel,
			"invocation", j.invocation,
			"error", err)
	}

	endInvocation(span, &o.record)

	return o
}

func call(fn analysis.Func, in analysis.Input, params analysis.Params) (out analysis.Output, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrMethodPanic, p)
		}
	}()

	return fn(in, params)
}

// conform checks out against the descriptor and builds the ok record.
func (r *Runner) conform(j job, out analysis.Output) (Record, map[string]any, error) {
	var problems []string

	for _, name := range j.desc.Outputs {
		if _, ok := out.Metrics[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing declared metric %q", name))
		}
	}

	rec := j.record(StatusOK)
	rec.Metrics = make(Values, len(out.Metrics))

	for name, val := range out.Metrics {
		if !j.desc.HasOutput(name) {
			problems = append(problems, fmt.Sprintf("undeclared metric %q", name))

			continue
		}

		v, err := checkValue(val)
		if err != nil {
			problems = append(problems, fmt.Sprintf("metric %q: %v", name, err))

			continue
		}

		if arr, ok := v.([]float64); ok && len(arr) > r.maxArrayLength {
			if rec.Truncated == nil {
				rec.Truncated = map[string]int{}
			}

			rec.Truncated[name] = len(arr)
			v = arr[:r.maxArrayLength]
		}

		rec.Metrics[name] = v
	}

	if out.Visualization != nil && !j.desc.Visualization {
		problems = append(problems, "undeclared visualization payload")
	}

	if len(problems) > 0 {
		sort.Strings(problems)

		return Record{}, nil, fmt.Errorf("%w: %s", ErrContractViolation, strings.Join(problems, "; "))
	}

	return rec, out.Visualization, nil
}

func (j job) record(status Status) Record {
	return Record{
		Family:     j.family,
		Method:     j.desc.ID,
		Channel:    j.channel,
		Invocation: j.invocation,
		Status:     status,
		Params:     Values(j.params.Clone()),
	}
}
