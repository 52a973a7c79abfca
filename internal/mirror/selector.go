package mirror

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrNoReachableMirror is returned when every probe failed.
var ErrNoReachableMirror = errors.New("no reachable mirror")

// Summary is the outcome of one run.
type Summary struct {
	// Mode is the name of the scheduler that ran the probes.
	Mode string
	// Results holds one entry per input mirror, in input order.
	Results []Result
	// Successes and Failures partition Results, keeping input order.
	Successes []Result
	Failures  []Result
	// Fastest is nil when no mirror was reachable.
	Fastest *Result
}

// Summarize partitions results and selects the fastest success.
func Summarize(mode string, results []Result) *Summary {
	s := &Summary{
		Mode:    mode,
		Results: results,
	}
	for _, r := range results {
		if r.OK {
			s.Successes = append(s.Successes, r)
		} else {
			s.Failures = append(s.Failures, r)
		}
	}
	if fastest, err := SelectFastest(s.Successes); err == nil {
		s.Fastest = &fastest
	}
	return s
}

// SelectFastest returns the success with the lowest latency. Latencies are
// compared as reported by LatencyMS, and among equal values the earliest
// entry wins.
func SelectFastest(successes []Result) (Result, error) {
	if len(successes) == 0 {
		return Result{}, ErrNoReachableMirror
	}
	fastest := successes[0]
	for _, r := range successes[1:] {
		if r.LatencyMS() < fastest.LatencyMS() {
			fastest = r
		}
	}
	return fastest, nil
}

// Rank returns a copy of successes ordered by LatencyMS. Equal values keep
// their relative order.
func Rank(successes []Result) []Result {
	ranked := append([]Result(nil), successes...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].LatencyMS() < ranked[j].LatencyMS()
	})
	return ranked
}

// RunnerUp returns the second entry of Rank(s.Successes), if any.
func (s *Summary) RunnerUp() (Result, bool) {
	if len(s.Successes) < 2 {
		return Result{}, false
	}
	return Rank(s.Successes)[1], true
}
