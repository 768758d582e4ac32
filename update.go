package ddns

import (
	"context"
	"net/http"

	"github.com/go-logr/logr"
)

// Provider is everything the update flow needs from a DNS host.
// *Cloudflare implements Provider.
type Provider interface {
	TokenVerifier
	GetIPOfHostname(ctx context.Context, zoneID, hostname, token string) Result[RecordSnapshot]
	UpdateIP(ctx context.Context, zoneID, recordID, hostname, ip, token string) Result[UpdatedRecord]
}

// OutcomeState is the terminal state of a reconciliation.
type OutcomeState int

const (
	Unchanged OutcomeState = iota + 1
	Updated
	Failed
)

func (s OutcomeState) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Stages at which a reconciliation can fail.
const (
	StageLookup = "lookup"
	StageUpdate = "update"
)

// UpdateOutcome is the result of Reconcile.
// Record is set only for Updated; Kind and Stage only for Failed.
type UpdateOutcome struct {
	State  OutcomeState
	Record *UpdatedRecord
	Kind   ErrorKind
	Stage  string
}

// Response is an update result ready to be written to the caller.
// When JSON is set the body is {"message": Message}; otherwise it is Message as plain text.
type Response struct {
	Status  int
	Message string
	JSON    bool
}

const (
	msgBadRequest   = "Bad Request"
	msgUnauthorized = "Unauthorized"
	msgLookupFailed = "Failed to get current hostname IP"
	msgUpdateFailed = "Failed to update IP"
	msgUpToDate     = "IP is already up to date"
	msgUpdated      = "Update successful"
)

// Service runs the update flow against a Provider.
// It holds no per-request state.
type Service struct {
	provider Provider
	logger   logr.Logger
	metrics  *Metrics
}

type ServiceOption func(*Service)

func NewService(p Provider, options ...ServiceOption) *Service {
	s := &Service{
		provider: p,
		logger:   logr.Discard(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(logger logr.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// Reconcile makes the A record for hostname point at ip.
//
// The current record is always read first and no write happens when it already holds ip,
// so repeating a successful call is a no-op.
func (s *Service) Reconcile(ctx context.Context, cred Credential, hostname, ip string) UpdateOutcome {
	current := s.provider.GetIPOfHostname(ctx, cred.ZoneID, hostname, cred.Token)
	if !current.Success {
		return UpdateOutcome{State: Failed, Kind: current.Error, Stage: StageLookup}
	}
	if current.Data.IP == ip {
		return UpdateOutcome{State: Unchanged}
	}

	updated := s.provider.UpdateIP(ctx, cred.ZoneID, current.Data.ID, hostname, ip, cred.Token)
	if !updated.Success {
		return UpdateOutcome{State: Failed, Kind: updated.Error, Stage: StageUpdate}
	}
	return UpdateOutcome{State: Updated, Record: updated.Data}
}

// HandleUpdate serves one /update request.
//
// Provider failures all collapse into a 500 response;
// the specific ErrorKind is only logged and counted.
func (s *Service) HandleUpdate(r *http.Request) Response {
	ctx := r.Context()
	logger := s.logger
	if l, err := logr.FromContext(ctx); err == nil {
		logger = l
	}

	q := r.URL.Query()
	hostname, ip := q.Get("hostname"), q.Get("myip")
	if hostname == "" || ip == "" {
		s.metrics.request("bad_request")
		logger.V(1).Info("missing update parameters", "hasHostname", hostname != "", "hasIP", ip != "")
		return Response{Status: http.StatusBadRequest, Message: msgBadRequest}
	}

	cred, ok := ParseBasicAuth(ctx, r, s.provider)
	if !ok {
		s.metrics.request("unauthorized")
		logger.Info("rejected credentials", "hostname", hostname)
		return Response{Status: http.StatusUnauthorized, Message: msgUnauthorized}
	}
	logger = logger.WithValues("hostname", hostname, "zone", cred.ZoneID, "tokenID", cred.VerifiedID)

	out := s.Reconcile(ctx, cred, hostname, ip)
	switch out.State {
	case Unchanged:
		s.metrics.request("unchanged")
		logger.V(1).Info("record already up to date", "ip", ip)
		return Response{Status: http.StatusOK, Message: msgUpToDate, JSON: true}
	case Updated:
		s.metrics.request("updated")
		logger.Info("record updated", "ip", out.Record.IP, "recordID", out.Record.RecordID, "ttl", out.Record.TTL)
		return Response{Status: http.StatusOK, Message: msgUpdated, JSON: true}
	}

	s.metrics.request("failed")
	s.metrics.providerFailure(out.Stage, out.Kind)
	logger.Error(out.Kind, "provider call failed", "stage", out.Stage, "ip", ip)
	if out.Stage == StageLookup {
		return Response{Status: http.StatusInternalServerError, Message: msgLookupFailed}
	}
	return Response{Status: http.StatusInternalServerError, Message: msgUpdateFailed}
}
