package mirror

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

func testSummary() *Summary {
	return Summarize(ModePool, []Result{
		succeeded("https://a.example/simple/", 30),
		succeeded("https://b.example/simple/", 20),
		failed(Mirror{URL: "https://c.example/simple/"}, errors.New("connection refused")),
	})
}

func TestWriteReportText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteReport(&buf, FormatText, testSummary()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"GOMAXPROCS=",
		"(pool)",
		"The fastest mirror is: https://b.example/simple/",
		"Latency: 20.00 ms",
		"  https://b.example/simple/: 20.00 ms\n  https://a.example/simple/: 30.00 ms\n",
		"2 succeeded, 1 failed (3 total)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "c.example") {
		t.Errorf("failed mirrors are not listed in the text report:\n%s", out)
	}

	buf.Reset()
	none := Summarize(ModeDispatch, []Result{failed(Mirror{URL: "x"}, errors.New("refused"))})
	if err := WriteReport(&buf, FormatText, none); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "all mirror connections have failed or timed out") {
		t.Errorf("unexpected report:\n%s", buf.String())
	}
}

func TestWriteReportJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteReport(&buf, FormatJSON, testSummary()); err != nil {
		t.Fatal(err)
	}

	var report Report
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Mode != ModePool || report.Total != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Fastest == nil || report.Fastest.URL != "https://b.example/simple/" || report.Fastest.LatencyMS != 20 {
		t.Errorf("report.Fastest = %+v", report.Fastest)
	}
	if report.Successes[0].URL != "https://b.example/simple/" {
		t.Errorf("successes are not ranked: %+v", report.Successes)
	}
	if report.Failures[0].Error != "connection refused" {
		t.Errorf("report.Failures = %+v", report.Failures)
	}
}

func TestWriteReportYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteReport(&buf, FormatYAML, testSummary()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "latency_ms: 20") {
		t.Errorf("unexpected yaml:\n%s", buf.String())
	}

	var report Report
	if err := yaml.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Fastest == nil || report.Fastest.URL != "https://b.example/simple/" {
		t.Errorf("report.Fastest = %+v", report.Fastest)
	}
	if len(report.Failures) != 1 || report.Failures[0].OK {
		t.Errorf("report.Failures = %+v", report.Failures)
	}
}

func TestWriteReportUnknownFormat(t *testing.T) {
	t.Parallel()

	if err := WriteReport(&bytes.Buffer{}, "xml", testSummary()); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
