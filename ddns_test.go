package ddns_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"

	ddns "github.com/Travis-Britz/ddnsd"
)

func staticIP(ip string) ddns.Resolver {
	return ddns.ResolverFunc(func(ctx context.Context) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr(ip)}, nil
	})
}

// updateEndpoint records the last /update request it saw and answers with status and body.
type updateEndpoint struct {
	mu     sync.Mutex
	status int
	body   string
	last   *http.Request
}

func (e *updateEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = r
	w.WriteHeader(e.status)
	w.Write([]byte(e.body))
}

func (e *updateEndpoint) request() *http.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func TestRunDDNS(t *testing.T) {
	tests := []struct {
		body    string
		changed bool
	}{
		{`{"message":"Update successful"}`, true},
		{`{"message":"IP is already up to date"}`, false},
	}
	for _, tt := range tests {
		e := &updateEndpoint{status: 200, body: tt.body}
		srv := httptest.NewServer(e)

		c, err := ddns.NewClient(srv.URL, "home.example.com", "zone-1", "tok:en",
			ddns.UsingResolver(staticIP("203.0.113.7")),
		)
		if err != nil {
			t.Fatalf("NewClient failed: %s", err)
		}
		rep, err := c.RunDDNS(context.Background())
		srv.Close()
		if err != nil {
			t.Fatalf("RunDDNS failed: %s", err)
		}
		if rep.Changed != tt.changed || rep.IP != netip.MustParseAddr("203.0.113.7") {
			t.Fatalf("Unexpected report %+v for %s", rep, tt.body)
		}

		last := e.request()
		if last.URL.Path != "/update" {
			t.Fatalf("Expected path /update; got %s", last.URL.Path)
		}
		if q := last.URL.Query(); q.Get("hostname") != "home.example.com" || q.Get("myip") != "203.0.113.7" {
			t.Fatalf("Unexpected query %s", last.URL.RawQuery)
		}
		user, pass, ok := last.BasicAuth()
		if !ok || user != "zone-1" || pass != "tok:en" {
			t.Fatalf("Expected basic auth zone-1/tok:en; got %q %q %v", user, pass, ok)
		}
	}
}

func TestRunDDNSPathPrefix(t *testing.T) {
	e := &updateEndpoint{status: 200, body: `{"message":"Update successful"}`}
	srv := httptest.NewServer(e)
	defer srv.Close()

	c, err := ddns.NewClient(srv.URL+"/ddns/", "home.example.com", "zone-1", "tok", ddns.UsingResolver(staticIP("203.0.113.7")))
	if err != nil {
		t.Fatalf("NewClient failed: %s", err)
	}
	if _, err := c.RunDDNS(context.Background()); err != nil {
		t.Fatalf("RunDDNS failed: %s", err)
	}
	if p := e.request().URL.Path; p != "/ddns/update" {
		t.Fatalf("Expected path /ddns/update; got %s", p)
	}
}

func TestRunDDNSStatusError(t *testing.T) {
	srv := httptest.NewServer(&updateEndpoint{status: 500, body: "Failed to update IP"})
	defer srv.Close()

	c, _ := ddns.NewClient(srv.URL, "home.example.com", "zone-1", "tok", ddns.UsingResolver(staticIP("203.0.113.7")))
	_, err := c.RunDDNS(context.Background())

	var se *ddns.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected a *StatusError; got %v", err)
	}
	if se.Code != 500 || se.Body != "Failed to update IP" {
		t.Fatalf("Unexpected status error %+v", se)
	}
}

func TestRunDDNSNeedsIPv4(t *testing.T) {
	e := &updateEndpoint{status: 200}
	srv := httptest.NewServer(e)
	defer srv.Close()

	c, _ := ddns.NewClient(srv.URL, "home.example.com", "zone-1", "tok", ddns.UsingResolver(staticIP("2001:db8::1")))
	if _, err := c.RunDDNS(context.Background()); err == nil {
		t.Fatalf("Expected an error for an IPv6-only resolver")
	}
	if e.request() != nil {
		t.Fatalf("Expected no request to the endpoint")
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name                              string
		endpoint, hostname, zoneID, token string
	}{
		{"empty hostname", "https://ddns.example.com", "", "zone", "tok"},
		{"empty zone", "https://ddns.example.com", "home.example.com", "", "tok"},
		{"empty token", "https://ddns.example.com", "home.example.com", "zone", ""},
		{"colon in zone", "https://ddns.example.com", "home.example.com", "zo:ne", "tok"},
		{"bad scheme", "ftp://ddns.example.com", "home.example.com", "zone", "tok"},
		{"no scheme", "ddns.example.com", "home.example.com", "zone", "tok"},
	}
	for _, tt := range tests {
		if _, err := ddns.NewClient(tt.endpoint, tt.hostname, tt.zoneID, tt.token); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}

	if _, err := ddns.NewClient("https://ddns.example.com", "home.example.com", "zone", "tok", ddns.UsingWebResolver()); err == nil {
		t.Errorf("Expected an error for a web resolver without URLs")
	}
}

type countingClient struct {
	mu   sync.Mutex
	runs int
	ran  chan struct{}
}

func (c *countingClient) RunDDNS(ctx context.Context) (ddns.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	if c.runs == 1 {
		close(c.ran)
	}
	return ddns.Report{}, nil
}

func TestRunDaemonRunsImmediately(t *testing.T) {
	c := &countingClient{ran: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ddns.RunDaemon(c, ctx, time.Hour, logr.Discard())
	select {
	case <-c.ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("Expected the daemon to run once without waiting for the interval")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runs != 1 {
		t.Fatalf("Expected exactly one run; got %d", c.runs)
	}
}
