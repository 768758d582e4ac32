package ddns

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricKind(t *testing.T) {
	tests := map[ErrorKind]string{
		ErrNoRecordFound:                 "NO_RECORD_FOUND",
		ErrNetwork:                       "NETWORK_ERROR",
		ErrUpdateFailed:                  "CF_UPDATE_FAILED",
		httpStatusKind(429):              "HTTP_429",
		providerKind("Record is locked"): "CF_OTHER",
		providerKind("81057"):            "CF_OTHER",
	}
	for kind, expected := range tests {
		if got := metricKind(kind); got != expected {
			t.Errorf("%s: expected %q; got %q", kind, expected, got)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.request("updated")
	m.providerFailure(StageLookup, ErrNetwork)
}

// stubProvider accepts any token and fails lookups with kind.
type stubProvider struct {
	kind ErrorKind
}

func (p stubProvider) VerifyToken(ctx context.Context, token string) Result[TokenStatus] {
	return succeed(TokenStatus{ID: "id", Status: "active"})
}

func (p stubProvider) GetIPOfHostname(ctx context.Context, zoneID, hostname, token string) Result[RecordSnapshot] {
	return fail[RecordSnapshot](p.kind)
}

func (p stubProvider) UpdateIP(ctx context.Context, zoneID, recordID, hostname, ip, token string) Result[UpdatedRecord] {
	return fail[UpdatedRecord](ErrInvalidInput)
}

func TestServiceCountsOutcomes(t *testing.T) {
	m := NewMetrics()
	svc := NewService(stubProvider{kind: httpStatusKind(403)}, WithMetrics(m))

	r := httptest.NewRequest(http.MethodGet, "/update?hostname=home.example.com&myip=5.6.7.8", nil)
	r.SetBasicAuth("zone", "tok")
	svc.HandleUpdate(r)
	svc.HandleUpdate(httptest.NewRequest(http.MethodGet, "/update", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("failed")); got != 1 {
		t.Errorf("Expected 1 failed request; got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("bad_request")); got != 1 {
		t.Errorf("Expected 1 bad request; got %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues(StageLookup, "HTTP_403")); got != 1 {
		t.Errorf("Expected 1 lookup failure with HTTP_403; got %v", got)
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `ddns_provider_failures_total{kind="HTTP_403",stage="lookup"} 1`) {
		t.Errorf("Expected the failure counter in the exposition; got:\n%s", body)
	}
}
