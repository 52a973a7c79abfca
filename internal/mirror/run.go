package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
)

// Runner probes a mirror list and summarizes the outcome.
type Runner struct {
	Scheduler     Scheduler
	Probe         ProbeFunc
	GlobalTimeout time.Duration
}

// NewRunner builds a Runner from the configuration. onResult may be nil.
func NewRunner(config *Config, onResult func(Result)) (*Runner, error) {
	if err := config.Check(); err != nil {
		return nil, err
	}
	scheduler, err := NewScheduler(config.Mode, SchedulerOptions{
		MaxConns:  config.MaxConns,
		ProbeRate: config.ProbeRate,
		OnResult:  onResult,
	})
	if err != nil {
		return nil, err
	}
	return &Runner{
		Scheduler:     scheduler,
		Probe:         NewProber(config).Probe,
		GlobalTimeout: config.EffectiveGlobalTimeout(),
	}, nil
}

// Run probes every mirror once. The summary is returned even when no mirror
// was reachable; the error is then ErrNoReachableMirror.
func (r *Runner) Run(ctx context.Context, mirrors []Mirror) (*Summary, error) {
	if len(mirrors) == 0 {
		return nil, errors.New("no mirrors to probe")
	}

	if r.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.GlobalTimeout)
		defer cancel()
	}

	slog.Info("probe starts", "mode", r.Scheduler.Name(), "mirrors", len(mirrors))
	start := time.Now()
	results := r.Scheduler.Schedule(ctx, mirrors, r.Probe)
	summary := Summarize(r.Scheduler.Name(), results)
	slog.Info("probe ends",
		"mode", summary.Mode,
		"succeeded", len(summary.Successes),
		"failed", len(summary.Failures),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if summary.Fastest == nil {
		return summary, errors.Wrapf(ErrNoReachableMirror, "all %d mirrors failed or timed out", len(mirrors))
	}
	return summary, nil
}
