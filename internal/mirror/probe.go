package mirror

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
)

// Probe methods.
const (
	MethodHead = "head"
	MethodGet  = "get"
	MethodTCP  = "tcp"
)

// getBodyLimit caps how much of a GET response is drained before the
// connection is closed.
const getBodyLimit = 4096

var (
	// ErrUnexpectedStatus marks probes answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrProbeAbandoned marks probes still pending when the run ended.
	ErrProbeAbandoned = errors.New("probe abandoned")
)

// Mirror is a candidate package index.
type Mirror struct {
	URL string
}

// Result is the outcome of probing one mirror.
type Result struct {
	URL     string
	Latency time.Duration
	OK      bool
	Err     error
}

// LatencyMS returns the latency in milliseconds rounded to two decimals.
func (r Result) LatencyMS() float64 {
	ms := float64(r.Latency) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}

func failed(m Mirror, err error) Result {
	return Result{URL: m.URL, Err: err}
}

// Prober times a single request against a mirror.
type Prober struct {
	client    *http.Client
	dialer    *net.Dialer
	method    string
	timeout   time.Duration
	userAgent string
}

// NewProber creates a Prober from the configuration.
func NewProber(config *Config) *Prober {
	return &Prober{
		client:    probeClient(),
		dialer:    &net.Dialer{},
		method:    config.Method,
		timeout:   config.Timeout.Duration,
		userAgent: config.UserAgent,
	}
}

// Probe issues exactly one request to m and never returns an error; failures
// are recorded in the result.
func (p *Prober) Probe(ctx context.Context, m Mirror) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target, err := url.Parse(m.URL)
	if err != nil {
		return failed(m, errors.Wrap(err, "parse url"))
	}
	if target.Hostname() == "" {
		return failed(m, errors.Newf("url has no host: %q", m.URL))
	}

	var latency time.Duration
	switch p.method {
	case MethodTCP:
		latency, err = p.probeTCP(ctx, target)
	case MethodGet:
		latency, err = p.probeHTTP(ctx, http.MethodGet, target)
	default:
		latency, err = p.probeHTTP(ctx, http.MethodHead, target)
	}
	if err != nil {
		slog.Debug("probe failed", "url", m.URL, "method", p.method, "error", err)
		return failed(m, err)
	}

	slog.Debug("probe succeeded", "url", m.URL, "method", p.method, "latency", latency)
	return Result{URL: m.URL, Latency: latency, OK: true}
}

func (p *Prober) probeHTTP(ctx context.Context, method string, target *url.URL) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return 0, errors.Wrap(err, "new request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Cache-Control", "max-age=0")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	defer closeRespBody(resp)

	if method == http.MethodGet {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, getBodyLimit))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.Wrapf(ErrUnexpectedStatus, "status %d", resp.StatusCode)
	}
	return latency, nil
}

func (p *Prober) probeTCP(ctx context.Context, target *url.URL) (time.Duration, error) {
	port := target.Port()
	if port == "" {
		if target.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(target.Hostname(), port))
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	if err := conn.Close(); err != nil {
		slog.Debug("failed to close probe connection", "host", target.Host, "error", err)
	}
	return latency, nil
}

// closeRespBody closes HTTP response body.
func closeRespBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err)
	}
}

// probeClient creates an HTTP client that neither reuses connections nor
// follows redirects, so every probe measures one fresh round trip.
func probeClient() *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DisableKeepAlives = true
	tr.MaxIdleConns = 0

	return &http.Client{
		Transport: tr,
		Timeout:   0, // no timeout; timeout is controlled by context
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
