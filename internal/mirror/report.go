package mirror

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ProbeReport is one probe in a machine-readable report.
type ProbeReport struct {
	URL       string  `json:"url" yaml:"url"`
	OK        bool    `json:"ok" yaml:"ok"`
	LatencyMS float64 `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the machine-readable form of a Summary.
type Report struct {
	GoVersion string        `json:"go_version" yaml:"go_version"`
	Mode      string        `json:"mode" yaml:"mode"`
	Total     int           `json:"total" yaml:"total"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Fastest   *ProbeReport  `json:"fastest,omitempty" yaml:"fastest,omitempty"`
	Successes []ProbeReport `json:"successes" yaml:"successes"`
	Failures  []ProbeReport `json:"failures" yaml:"failures"`
}

func toProbeReport(r Result) ProbeReport {
	pr := ProbeReport{URL: r.URL, OK: r.OK}
	if r.OK {
		pr.LatencyMS = r.LatencyMS()
	} else if r.Err != nil {
		pr.Error = r.Err.Error()
	}
	return pr
}

// NewReport converts a summary. Successes are ordered by latency.
func NewReport(s *Summary) *Report {
	report := &Report{
		GoVersion: runtime.Version(),
		Mode:      s.Mode,
		Total:     len(s.Results),
		Succeeded: len(s.Successes),
		Failed:    len(s.Failures),
		Successes: []ProbeReport{},
		Failures:  []ProbeReport{},
	}
	if s.Fastest != nil {
		fastest := toProbeReport(*s.Fastest)
		report.Fastest = &fastest
	}
	for _, r := range Rank(s.Successes) {
		report.Successes = append(report.Successes, toProbeReport(r))
	}
	for _, r := range s.Failures {
		report.Failures = append(report.Failures, toProbeReport(r))
	}
	return report
}

// RuntimeBanner describes the Go runtime and the concurrency mode in use.
func RuntimeBanner(mode string) string {
	return fmt.Sprintf("Detected Go runtime: %s %s/%s, GOMAXPROCS=%d (%s)",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.GOMAXPROCS(0), mode)
}

// WriteReport writes s to w in the given format.
func WriteReport(w io.Writer, format string, s *Summary) error {
	switch strings.ToLower(format) {
	case FormatText, "":
		return writeText(w, s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(NewReport(s)), "encode json report")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewReport(s)); err != nil {
			return errors.Wrap(err, "encode yaml report")
		}
		return errors.Wrap(enc.Close(), "encode yaml report")
	}
	return errors.New("invalid report format: " + format)
}

func writeText(w io.Writer, s *Summary) error {
	var b strings.Builder
	b.WriteString(RuntimeBanner(s.Mode) + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	b.WriteString("\n--- Speed Test Results Summary ---\n")

	if s.Fastest == nil {
		b.WriteString("Error: all mirror connections have failed or timed out.\n")
		b.WriteString("Please check your network or try again later.\n")
	} else {
		fmt.Fprintf(&b, "The fastest mirror is: %s\n", s.Fastest.URL)
		fmt.Fprintf(&b, "Latency: %.2f ms\n", s.Fastest.LatencyMS())

		b.WriteString("\n--- All Successful Connection Results (URL, Latency in ms) ---\n")
		for _, r := range Rank(s.Successes) {
			fmt.Fprintf(&b, "  %s: %.2f ms\n", r.URL, r.LatencyMS())
		}
	}
	fmt.Fprintf(&b, "\n%d succeeded, %d failed (%d total)\n",
		len(s.Successes), len(s.Failures), len(s.Results))

	_, err := io.WriteString(w, b.String())
	return err
}
