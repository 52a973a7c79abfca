package mirror

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func testProber(method string, timeout time.Duration) *Prober {
	c := NewConfig()
	c.Method = method
	c.Timeout.Duration = timeout
	return NewProber(c)
}

func TestProbeHTTP(t *testing.T) {
	t.Parallel()

	var (
		mu                  sync.Mutex
		gotMethod, gotAgent string
	)
	seen := func() (string, string) {
		mu.Lock()
		defer mu.Unlock()
		return gotMethod, gotAgent
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/simple/":
			mu.Lock()
			gotMethod = r.Method
			gotAgent = r.Header.Get("User-Agent")
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html></html>"))
		case "/broken/":
			w.WriteHeader(http.StatusInternalServerError)
		case "/moved/":
			http.Redirect(w, r, "/simple/", http.StatusMovedPermanently)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		ok         bool
		wantStatus bool
		wantMethod string
	}{
		{name: "head success", method: MethodHead, path: "/simple/", ok: true, wantMethod: http.MethodHead},
		{name: "get success", method: MethodGet, path: "/simple/", ok: true, wantMethod: http.MethodGet},
		{name: "server error", method: MethodHead, path: "/broken/", wantStatus: true},
		{name: "not found", method: MethodGet, path: "/missing/", wantStatus: true},
		{name: "redirect is not followed", method: MethodHead, path: "/moved/", wantStatus: true},
	}

	for _, tt := range tests {
		m := Mirror{URL: server.URL + tt.path}
		r := testProber(tt.method, 2*time.Second).Probe(context.Background(), m)

		if r.URL != m.URL {
			t.Errorf("%s: r.URL = %q, want %q", tt.name, r.URL, m.URL)
		}
		if r.OK != tt.ok {
			t.Errorf("%s: r.OK = %v, want %v (err: %v)", tt.name, r.OK, tt.ok, r.Err)
			continue
		}
		if tt.ok {
			if r.Err != nil || r.Latency <= 0 {
				t.Errorf("%s: unexpected result %+v", tt.name, r)
			}
			method, agent := seen()
			if method != tt.wantMethod {
				t.Errorf("%s: server saw %q, want %q", tt.name, method, tt.wantMethod)
			}
			if agent != defaultUserAgent {
				t.Errorf("%s: User-Agent = %q", tt.name, agent)
			}
		}
		if tt.wantStatus && !errors.Is(r.Err, ErrUnexpectedStatus) {
			t.Errorf("%s: r.Err = %v, want ErrUnexpectedStatus", tt.name, r.Err)
		}
	}
}

func TestProbeTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	r := testProber(MethodHead, 100*time.Millisecond).Probe(context.Background(), Mirror{URL: server.URL + "/simple/"})
	elapsed := time.Since(start)

	if r.OK {
		t.Fatal("a mirror that never answers must fail")
	}
	if !errors.Is(r.Err, context.DeadlineExceeded) {
		t.Errorf("r.Err = %v, want deadline exceeded", r.Err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("probe took %v, the timeout was 100ms", elapsed)
	}
}

func TestProbeTCP(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	addr := listener.Addr().String()

	r := testProber(MethodTCP, 2*time.Second).Probe(context.Background(), Mirror{URL: "http://" + addr + "/simple/"})
	if !r.OK || r.Latency <= 0 {
		t.Errorf("tcp probe against a listener failed: %+v", r)
	}

	listener.Close()
	r = testProber(MethodTCP, 2*time.Second).Probe(context.Background(), Mirror{URL: "http://" + addr + "/simple/"})
	if r.OK {
		t.Error("tcp probe against a closed port should fail")
	}
}

func TestProbeInvalidURL(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"://bad", "https:///simple/", "not a url"} {
		r := testProber(MethodHead, time.Second).Probe(context.Background(), Mirror{URL: u})
		if r.OK || r.Err == nil {
			t.Errorf("Probe(%q) = %+v, want a failure", u, r)
		}
		if r.URL != u {
			t.Errorf("Probe(%q).URL = %q", u, r.URL)
		}
	}
}

func TestLatencyMS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		latency time.Duration
		want    float64
	}{
		{0, 0},
		{20 * time.Millisecond, 20},
		{12345678 * time.Nanosecond, 12.35},
		{1500 * time.Microsecond, 1.5},
	}
	for _, tt := range tests {
		if got := (Result{Latency: tt.latency}).LatencyMS(); got != tt.want {
			t.Errorf("LatencyMS(%v) = %v, want %v", tt.latency, got, tt.want)
		}
	}
}
