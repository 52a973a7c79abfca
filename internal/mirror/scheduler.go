package mirror

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Concurrency modes.
const (
	ModeAuto     = "auto"
	ModePool     = "pool"
	ModeDispatch = "dispatch"
)

// ProbeFunc probes one mirror. It must honor ctx.
type ProbeFunc func(ctx context.Context, m Mirror) Result

// Scheduler runs one probe per mirror and returns the results in input
// order. Mirrors whose probe had not finished when ctx ended are reported as
// failed with ErrProbeAbandoned.
type Scheduler interface {
	Name() string
	Schedule(ctx context.Context, mirrors []Mirror, probe ProbeFunc) []Result
}

// SchedulerOptions are shared by all scheduler implementations.
type SchedulerOptions struct {
	// MaxConns bounds the number of probes in flight (pool only).
	MaxConns int
	// ProbeRate limits probe launches per second; zero means no limit.
	ProbeRate float64
	// OnResult, when set, is called once for every finished probe. It may be
	// called from several goroutines at once.
	OnResult func(Result)
}

func (o SchedulerOptions) limiter() *rate.Limiter {
	if o.ProbeRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.ProbeRate), 1)
}

func (o SchedulerOptions) notify(r Result) {
	if o.OnResult != nil {
		o.OnResult(r)
	}
}

// NewScheduler returns the scheduler for mode. ModeAuto picks the worker
// pool when more than one OS thread may run Go code and the dispatch loop
// otherwise.
func NewScheduler(mode string, opts SchedulerOptions) (Scheduler, error) {
	if mode == ModeAuto {
		if runtime.GOMAXPROCS(0) > 1 {
			mode = ModePool
		} else {
			mode = ModeDispatch
		}
	}

	switch mode {
	case ModePool:
		if opts.MaxConns <= 0 {
			return nil, errors.New("max_conns must be positive")
		}
		return &PoolScheduler{opts: opts}, nil
	case ModeDispatch:
		return &DispatchScheduler{opts: opts}, nil
	}
	return nil, errors.New("invalid mode: " + mode)
}

func abandoned(m Mirror, cause error) Result {
	if cause == nil {
		cause = context.Canceled
	}
	return failed(m, errors.Wrap(ErrProbeAbandoned, cause.Error()))
}

// PoolScheduler runs probes on at most MaxConns goroutines.
type PoolScheduler struct {
	opts SchedulerOptions
}

// Name implements Scheduler.
func (s *PoolScheduler) Name() string { return ModePool }

// Schedule implements Scheduler.
func (s *PoolScheduler) Schedule(ctx context.Context, mirrors []Mirror, probe ProbeFunc) []Result {
	results := make([]Result, len(mirrors))
	limiter := s.opts.limiter()

	var group errgroup.Group
	group.SetLimit(s.opts.MaxConns)

	for i, m := range mirrors {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				results[i] = abandoned(m, ctx.Err())
				s.opts.notify(results[i])
				continue
			}
		}
		if ctx.Err() != nil {
			results[i] = abandoned(m, ctx.Err())
			s.opts.notify(results[i])
			continue
		}

		group.Go(func() error {
			results[i] = probe(ctx, m)
			s.opts.notify(results[i])
			return nil
		})
	}

	// workers never return errors; a failed probe is a Result
	_ = group.Wait()
	return results
}

// DispatchScheduler starts every probe at once and collects the results in a
// single loop. Probes still running when ctx ends are abandoned.
type DispatchScheduler struct {
	opts SchedulerOptions
}

// Name implements Scheduler.
func (s *DispatchScheduler) Name() string { return ModeDispatch }

type slotResult struct {
	index  int
	result Result
}

// Schedule implements Scheduler.
func (s *DispatchScheduler) Schedule(ctx context.Context, mirrors []Mirror, probe ProbeFunc) []Result {
	results := make([]Result, len(mirrors))
	done := make([]bool, len(mirrors))
	limiter := s.opts.limiter()

	// buffered so that abandoned probes never block on send
	ch := make(chan slotResult, len(mirrors))
	pending := 0

	for i, m := range mirrors {
		if limiter != nil && limiter.Wait(ctx) != nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		pending++
		go func() {
			ch <- slotResult{index: i, result: probe(ctx, m)}
		}()
	}

	collect := func(r slotResult) {
		results[r.index] = r.result
		done[r.index] = true
		pending--
		s.opts.notify(r.result)
	}

loop:
	for pending > 0 {
		select {
		case r := <-ch:
			collect(r)
		case <-ctx.Done():
			break loop
		}
	}

	// keep whatever finished together with the deadline
	for pending > 0 {
		select {
		case r := <-ch:
			collect(r)
			continue
		default:
		}
		break
	}

	for i, m := range mirrors {
		if !done[i] {
			results[i] = abandoned(m, ctx.Err())
			s.opts.notify(results[i])
		}
	}
	return results
}
