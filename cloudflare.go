package ddns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
	"github.com/google/go-querystring/query"
	"github.com/hashicorp/go-cleanhttp"
)

// DefaultAPIBase is the Cloudflare v4 API root.
const DefaultAPIBase = "https://api.cloudflare.com/client/v4"

// Records written by UpdateIP always use this policy.
const (
	recordType    = "A"
	recordTTL     = 120
	recordProxied = false
)

// TokenStatus is the identity behind a verified API token.
type TokenStatus struct {
	ID     string
	Status string
}

// RecordSnapshot is the current A record content for a hostname.
type RecordSnapshot struct {
	ID string
	IP string
}

// UpdatedRecord describes a record after a successful UpdateIP.
type UpdatedRecord struct {
	RecordID string `json:"recordId"`
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	TTL      int    `json:"ttl"`
	Proxied  bool   `json:"proxied"`
}

// Cloudflare talks to the Cloudflare DNS API.
//
// It keeps no per-request state: the token and zone for each call are passed as arguments,
// so a single value can serve any number of concurrent requests.
// It should be constructed using NewCloudflare.
type Cloudflare struct {
	apiBase    string
	httpClient *http.Client
	logger     logr.Logger
}

type CloudflareOption func(*Cloudflare) error

// NewCloudflare returns a provider client for the public Cloudflare API.
//
// The default transport comes from go-cleanhttp and has no overall request timeout;
// no call is ever retried.
func NewCloudflare(options ...CloudflareOption) (*Cloudflare, error) {
	cf := &Cloudflare{
		apiBase:    DefaultAPIBase,
		httpClient: cleanhttp.DefaultPooledClient(),
		logger:     logr.Discard(),
	}
	for i, opt := range options {
		if err := opt(cf); err != nil {
			return nil, fmt.Errorf("ddns.NewCloudflare: option %d returned an error: %w", i, err)
		}
	}
	return cf, nil
}

// WithAPIBase points the client at a different API root, e.g. a test server.
func WithAPIBase(base string) CloudflareOption {
	return func(cf *Cloudflare) error {
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("error parsing API base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("API base URL %q must use http or https", base)
		}
		cf.apiBase = strings.TrimRight(base, "/")
		return nil
	}
}

func WithHTTPClient(httpclient *http.Client) CloudflareOption {
	return func(cf *Cloudflare) error {
		if httpclient == nil {
			httpclient = cleanhttp.DefaultPooledClient()
		}
		cf.httpClient = httpclient
		return nil
	}
}

func WithProviderLogger(logger logr.Logger) CloudflareOption {
	return func(cf *Cloudflare) error {
		cf.logger = logger
		return nil
	}
}

// envelope is the common shape of every v4 response.
// Result is decoded later because its type depends on the endpoint.
type envelope struct {
	cloudflare.Response
	Result json.RawMessage `json:"result"`
}

// VerifyToken checks that token is valid and active.
func (cf *Cloudflare) VerifyToken(ctx context.Context, token string) Result[TokenStatus] {
	if token == "" {
		return fail[TokenStatus](ErrInvalidToken)
	}

	env, kind := cf.do(ctx, http.MethodGet, "/user/tokens/verify", token, nil)
	if kind != "" {
		return fail[TokenStatus](kind)
	}
	if !env.Success {
		return fail[TokenStatus](ErrVerifyFailed)
	}

	var body cloudflare.APITokenVerifyBody
	if err := json.Unmarshal(env.Result, &body); err != nil {
		cf.logger.V(1).Info("unreadable token verification result", "error", err.Error())
		return fail[TokenStatus](ErrTokenNotActive)
	}
	if body.ID == "" || body.Status != "active" {
		return fail[TokenStatus](ErrTokenNotActive)
	}
	return succeed(TokenStatus{ID: body.ID, Status: body.Status})
}

type recordQuery struct {
	Name string `url:"name"`
	Type string `url:"type"`
}

// GetIPOfHostname returns the first A record named hostname in the zone.
//
// Cloudflare does not document an order for the list, so when several records match
// the one returned is not guaranteed to be stable.
func (cf *Cloudflare) GetIPOfHostname(ctx context.Context, zoneID, hostname, token string) Result[RecordSnapshot] {
	q, err := query.Values(recordQuery{Name: hostname, Type: recordType})
	if err != nil {
		cf.logger.Error(err, "encoding record query")
		return fail[RecordSnapshot](ErrNetwork)
	}
	path := "/zones/" + url.PathEscape(zoneID) + "/dns_records?" + q.Encode()

	env, kind := cf.do(ctx, http.MethodGet, path, token, nil)
	if kind != "" {
		return fail[RecordSnapshot](kind)
	}
	if !env.Success {
		return fail[RecordSnapshot](ErrAPIFailed)
	}

	raw := bytes.TrimSpace(env.Result)
	if len(raw) == 0 || raw[0] != '[' {
		return fail[RecordSnapshot](ErrNoRecordFound)
	}
	var records []cloudflare.DNSRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		cf.logger.V(1).Info("unreadable dns record list", "error", err.Error())
		return fail[RecordSnapshot](ErrNetwork)
	}
	if len(records) == 0 {
		return fail[RecordSnapshot](ErrNoRecordFound)
	}
	if len(records) > 1 {
		cf.logger.V(1).Info("multiple A records match, using the first", "hostname", hostname, "count", len(records))
	}
	return succeed(RecordSnapshot{ID: records[0].ID, IP: records[0].Content})
}

type recordUpdate struct {
	Type    string `json:"type"`
	Proxied bool   `json:"proxied"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// UpdateIP replaces record recordID with an A record pointing hostname at ip.
func (cf *Cloudflare) UpdateIP(ctx context.Context, zoneID, recordID, hostname, ip, token string) Result[UpdatedRecord] {
	if zoneID == "" || recordID == "" || hostname == "" || ip == "" || token == "" {
		return fail[UpdatedRecord](ErrInvalidInput)
	}

	path := "/zones/" + url.PathEscape(zoneID) + "/dns_records/" + url.PathEscape(recordID)
	env, kind := cf.do(ctx, http.MethodPut, path, token, recordUpdate{
		Type:    recordType,
		Proxied: recordProxied,
		Name:    hostname,
		Content: ip,
		TTL:     recordTTL,
	})
	if kind != "" {
		return fail[UpdatedRecord](kind)
	}
	if !env.Success {
		return fail[UpdatedRecord](updateFailure(env.Errors))
	}

	var rec cloudflare.DNSRecord
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &rec); err != nil {
			cf.logger.V(1).Info("unreadable updated record, falling back to request values", "error", err.Error())
			rec = cloudflare.DNSRecord{}
		}
	}
	updated := UpdatedRecord{
		RecordID: fallback(rec.ID, recordID),
		Hostname: fallback(rec.Name, hostname),
		IP:       fallback(rec.Content, ip),
		TTL:      recordTTL,
		Proxied:  recordProxied,
	}
	if rec.TTL != 0 {
		updated.TTL = rec.TTL
	}
	if rec.Proxied != nil {
		updated.Proxied = *rec.Proxied
	}
	return succeed(updated)
}

// updateFailure keeps the first error Cloudflare reported, preferring its message over its code.
func updateFailure(errs []cloudflare.ResponseInfo) ErrorKind {
	if len(errs) == 0 {
		return ErrUpdateFailed
	}
	if errs[0].Message != "" {
		return providerKind(errs[0].Message)
	}
	if errs[0].Code != 0 {
		return providerKind(strconv.Itoa(errs[0].Code))
	}
	return ErrUpdateFailed
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// do sends one authenticated request and decodes the response envelope.
// A non-empty kind means no envelope could be read.
func (cf *Cloudflare) do(ctx context.Context, method, path, token string, body any) (env envelope, kind ErrorKind) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			cf.logger.Error(err, "encoding request body", "method", method)
			return env, ErrNetwork
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, cf.apiBase+path, reqBody)
	if err != nil {
		cf.logger.Error(err, "creating request", "method", method)
		return env, ErrNetwork
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := cf.httpClient.Do(req)
	if err != nil {
		cf.logger.Error(err, "cloudflare request failed", "method", method)
		return env, ErrNetwork
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return env, httpStatusKind(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		cf.logger.Error(err, "decoding cloudflare response", "method", method, "status", resp.StatusCode)
		return envelope{}, ErrNetwork
	}
	return env, ""
}
