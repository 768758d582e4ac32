package ddns

import (
	"context"
	"net/http"
	"strings"
)

// Credential is the caller identity for a single update request.
//
// Basic auth is only the envelope here: the username carries a Cloudflare zone ID
// and the password is the Cloudflare API token itself.
type Credential struct {
	ZoneID     string
	Token      string
	VerifiedID string
}

// TokenVerifier checks an API token against the provider.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) Result[TokenStatus]
}

// ParseBasicAuth reads "zoneID:token" from the request's Basic credentials
// and verifies the token with v.
//
// It reports false for a missing or malformed header, an empty zone ID or token,
// and for any token the provider does not accept.
// Tokens are verified on every call and never cached.
func ParseBasicAuth(ctx context.Context, r *http.Request, v TokenVerifier) (Credential, bool) {
	// BasicAuth splits the decoded payload at the first colon.
	user, pass, ok := r.BasicAuth()
	if !ok {
		return Credential{}, false
	}
	zoneID := strings.TrimSpace(user)
	token := strings.TrimSpace(pass)
	if zoneID == "" || token == "" {
		return Credential{}, false
	}

	vr := v.VerifyToken(ctx, token)
	if !vr.Success || vr.Data == nil || vr.Data.ID == "" {
		return Credential{}, false
	}
	return Credential{
		ZoneID:     zoneID,
		Token:      token,
		VerifiedID: vr.Data.ID,
	}, true
}
