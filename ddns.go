package ddns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-cleanhttp"
)

// DDNSClient is one round of "find my address, publish it".
type DDNSClient interface {
	RunDDNS(ctx context.Context) (Report, error)
}

// Report is what the update endpoint said about one run.
type Report struct {
	IP      netip.Addr
	Changed bool
	Message string
}

// StatusError is returned when the update endpoint answers with anything but 200 OK.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("update endpoint returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// NewClient returns a client for the /update endpoint served at endpoint.
//
// zoneID and token are sent as the Basic auth username and password;
// the endpoint verifies the token with Cloudflare on every request.
func NewClient(endpoint, hostname, zoneID, token string, options ...clientOption) (*Client, error) {
	if hostname == "" {
		return nil, errors.New("ddns.NewClient: hostname cannot be empty")
	}
	if zoneID == "" || token == "" {
		return nil, errors.New("ddns.NewClient: zone ID and token are required")
	}
	// the endpoint splits credentials at the first colon
	if strings.Contains(zoneID, ":") {
		return nil, errors.New("ddns.NewClient: zone ID cannot contain ':'")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("ddns.NewClient: error parsing endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ddns.NewClient: endpoint %q must use http or https", endpoint)
	}

	c := &Client{
		Resolver:   DefaultResolver,
		httpClient: cleanhttp.DefaultClient(),
		logger:     logr.Discard(),
		endpoint:   u,
		hostname:   hostname,
		zoneID:     zoneID,
		token:      token,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.NewClient: option %d returned an error: %s", i, err)
		}
	}
	// resolvers registered before UsingHTTPClient still get the client
	if wr, ok := c.Resolver.(*webResolver); ok && wr.httpClient == nil {
		wr.httpClient = c.httpClient
	}
	return c, nil
}

type clientOption func(*Client) error

func UsingResolver(resolver Resolver) clientOption {
	return func(c *Client) error {
		if resolver == nil {
			resolver = DefaultResolver
		}
		c.Resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) clientOption {
	return func(c *Client) error {
		if len(serviceURL) == 0 {
			return errors.New("no web resolver URLs given")
		}
		c.Resolver = WebResolver(serviceURL...)
		return nil
	}
}

func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = cleanhttp.DefaultClient()
		}
		c.httpClient = httpclient
		if wr, ok := c.Resolver.(*webResolver); ok {
			wr.httpClient = httpclient
		}
		return nil
	}
}

func WithClientLogger(logger logr.Logger) clientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// Client publishes this machine's IPv4 address through a ddnsd endpoint.
type Client struct {
	Resolver
	httpClient *http.Client
	logger     logr.Logger
	endpoint   *url.URL
	hostname   string
	zoneID     string
	token      string
}

func (c *Client) RunDDNS(ctx context.Context) (Report, error) {
	addrs, err := c.Resolve(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("error getting IPs: %w", err)
	}
	c.logger.V(1).Info("resolved addresses", "addrs", addrs)

	ip, ok := firstIPv4(addrs)
	if !ok {
		return Report{}, fmt.Errorf("no IPv4 address among %v", addrs)
	}

	rep, err := c.send(ctx, ip)
	if err != nil {
		return Report{}, fmt.Errorf("error updating %s to %s: %w", c.hostname, ip, err)
	}
	c.logger.Info(rep.Message, "hostname", c.hostname, "ip", ip.String(), "changed", rep.Changed)
	return rep, nil
}

func (c *Client) send(ctx context.Context, ip netip.Addr) (Report, error) {
	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/update"
	u.RawQuery = url.Values{
		"hostname": {c.hostname},
		"myip":     {ip.String()},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Report{}, fmt.Errorf("error creating request: %w", err)
	}
	req.SetBasicAuth(c.zoneID, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return Report{}, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Report{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return Report{}, fmt.Errorf("error parsing response: %w", err)
	}
	return Report{
		IP:      ip,
		Changed: msg.Message == msgUpdated,
		Message: msg.Message,
	}, nil
}

// RunDaemon runs ddnsClient once and then every interval as a goroutine, until ctx is done.
// Intervals shorter than a minute are raised to one minute.
func RunDaemon(ddnsClient DDNSClient, ctx context.Context, interval time.Duration, logger logr.Logger) {
	if interval < 1*time.Minute {
		interval = 1 * time.Minute
	}
	run := func() {
		if _, err := ddnsClient.RunDDNS(ctx); err != nil && ctx.Err() == nil {
			logger.Error(err, "ddns run failed")
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		run()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
