package ddns

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// WebResolver constructs a resolver which asks external web services for our public IP address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IP address as the first line of the response body.
// All other responses are considered an error.
//
// With one serviceURL the resolver simply returns its answer.
// With more, it asks up to three of them at once and only succeeds
// when two of the non-error responses agree.
//
// The update endpoint only manages A records, so prefer services that answer over IPv4,
// e.g. https://ipv4.icanhazip.com/.
func WebResolver(serviceURL ...string) Resolver {
	return &webResolver{serviceURLs: serviceURL}
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []string
}

// maxWebLookups caps how many services are asked per Resolve.
const maxWebLookups = 3

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return nil, errors.New("no external IP lookup services were provided")
	}
	if len(wr.serviceURLs) == 1 {
		addr, err := wr.lookup(ctx, wr.serviceURLs[0])
		if err != nil {
			return nil, err
		}
		return []netip.Addr{addr}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	n := min(len(wr.serviceURLs), maxWebLookups)
	results := make(chan result, n)
	for _, u := range wr.serviceURLs[:n] {
		u := u // per-iteration copy (go 1.21 loop semantics)
		go func() {
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}

	var (
		errs []error
		ip   netip.Addr
		good int
	)
	for i := 0; i < n; i++ {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		good++
		if !ip.IsValid() {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return []netip.Addr{ip}, nil
		}
	}
	if good < 2 {
		return nil, fmt.Errorf("not enough resolvers responded without errors: %w", errors.Join(errs...))
	}
	return nil, errors.New("IP resolvers did not agree on our IP")
}

func (wr *webResolver) lookup(ctx context.Context, serviceURL string) (netip.Addr, error) {
	// bounds every lookup even when the caller passed context.Background
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request for %s: %w", serviceURL, err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = cleanhttp.DefaultClient()
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("%s returned %s", serviceURL, resp.Status)
	}

	line, err := bufio.NewReader(io.LimitReader(resp.Body, 256)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return netip.Addr{}, fmt.Errorf("error reading response body: %w", err)
	}
	ip, err := netip.ParseAddr(strings.TrimSpace(line))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from %s: %w", serviceURL, err)
	}
	return ip, nil
}
