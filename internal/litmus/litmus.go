// Package litmus runs concurrency litmus tests against the atomics backend
// compiled into the binary.
package litmus

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shm-atomic/internal/logger"
	"github.com/srediag/shm-atomic/internal/shm"
	"github.com/srediag/shm-atomic/pkg/atomics"
)

const pollInterval = 10 * time.Millisecond

var log = logger.New("litmus", nil)

// Config controls a Runner.
type Config struct {
	// Iterations is the number of trials per test, split across workers.
	Iterations int
	// Workers is the size of the worker pool. At least two are used.
	Workers int
	// Registerer receives the runs and violations counters when not nil.
	Registerer prometheus.Registerer
}

// DefaultConfig returns 100000 iterations over GOMAXPROCS workers.
func DefaultConfig() Config {
	return Config{
		Iterations: 100000,
		Workers:    runtime.GOMAXPROCS(0),
	}
}

// Result is the outcome of one litmus test.
type Result struct {
	Name       string
	Runs       int
	Violations int
	Detail     string
}

// Passed reports whether no forbidden outcome was observed.
func (r Result) Passed() bool { return r.Violations == 0 }

func (r Result) String() string {
	status := "ok"
	if !r.Passed() {
		status = "FAIL"
	}
	return fmt.Sprintf("%-16s %-4s runs=%d violations=%d %s", r.Name, status, r.Runs, r.Violations, r.Detail)
}

type outcome struct {
	runs       int
	violations int
	detail     string
}

// Runner schedules litmus tests on a worker pool.
type Runner struct {
	cfg        Config
	pool       *ants.Pool
	outcomes   *queue.RingBuffer
	runs       *prometheus.CounterVec
	violations *prometheus.CounterVec
}

// NewRunner validates cfg and starts the worker pool.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("litmus: iterations must be positive, got %d", cfg.Iterations)
	}
	cfg.Workers = max(cfg.Workers, 2)
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("litmus: worker pool: %w", err)
	}
	r := &Runner{
		cfg:      cfg,
		pool:     pool,
		outcomes: queue.NewRingBuffer(uint64(cfg.Workers) * 2),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shm_atomic_litmus_runs_total",
			Help: "Litmus trials executed.",
		}, []string{"test", "backend"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shm_atomic_litmus_violations_total",
			Help: "Litmus trials that observed a forbidden outcome.",
		}, []string{"test", "backend"}),
	}
	if cfg.Registerer != nil {
		if r.runs, err = register(cfg.Registerer, r.runs); err != nil {
			pool.Release()
			return nil, err
		}
		if r.violations, err = register(cfg.Registerer, r.violations); err != nil {
			pool.Release()
			return nil, err
		}
	}
	return r, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("litmus: register metrics: %w", err)
	}
	return c, nil
}

// Close stops the worker pool.
func (r *Runner) Close() {
	r.pool.Release()
	r.outcomes.Dispose()
}

// Run executes every litmus test in turn.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	tests := []func(context.Context) (Result, error){
		r.MessagePassing,
		r.CASCounter,
		r.RefEquivalence,
	}
	results := make([]Result, 0, len(tests))
	for _, test := range tests {
		res, err := test(ctx)
		if err != nil {
			return results, err
		}
		log.Infof("%s", res)
		results = append(results, res)
	}
	return results, nil
}

// dispatch runs tasks on the pool and sums the outcome each one reports.
// verify, when set, inspects the shared state once every task finished.
func (r *Runner) dispatch(ctx context.Context, name string, tasks []func() outcome, verify func(*Result)) (Result, error) {
	submitted := 0
	var submitErr error
	for _, task := range tasks {
		if submitErr = ctx.Err(); submitErr != nil {
			break
		}
		task := task
		if submitErr = r.pool.Submit(func() {
			if err := r.outcomes.Put(task()); err != nil {
				log.Warnf("%s: outcome dropped: %v", name, err)
			}
		}); submitErr != nil {
			submitErr = fmt.Errorf("litmus: submit %s: %w", name, submitErr)
			break
		}
		submitted++
	}

	// Tasks touch memory owned by the caller, so every submitted task is
	// drained before returning, even after ctx is done.
	res := Result{Name: name}
	for pending := submitted; pending > 0; {
		item, err := r.outcomes.Poll(pollInterval)
		if errors.Is(err, queue.ErrTimeout) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("litmus: collect %s: %w", name, err)
		}
		o := item.(outcome)
		res.Runs += o.runs
		res.Violations += o.violations
		if o.detail != "" {
			res.Detail = o.detail
		}
		pending--
	}
	if submitErr != nil {
		return res, submitErr
	}
	if verify != nil {
		verify(&res)
	}
	r.runs.WithLabelValues(name, atomics.Backend).Add(float64(res.Runs))
	r.violations.WithLabelValues(name, atomics.Backend).Add(float64(res.Violations))
	return res, nil
}

// scratch returns zeroed shared memory of at least size bytes, falling back
// to the Go heap where shared memory is unsupported.
func scratch(ctx context.Context, size int) ([]byte, func()) {
	region, err := shm.MapRegion(ctx, shm.MapOptions{Size: size})
	if err != nil {
		log.Debugf("scratch region unavailable, using heap: %v", err)
		return make([]byte, size), func() {}
	}
	return region.Addr, func() {
		if err := shm.UnmapRegion(context.Background(), region); err != nil {
			log.Warnf("unmap scratch region: %v", err)
		}
	}
}

func split(total, parts int) []int {
	out := make([]int, parts)
	for i := range out {
		out[i] = total / parts
		if i < total%parts {
			out[i]++
		}
	}
	return out
}
