package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"planextract/internal/domain"
	"planextract/internal/port"
)

const defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// tokenInfo is the subset of the tokeninfo payload the service reads.
// Google encodes every value as a string.
type tokenInfo struct {
	Issuer        string `json:"iss"`
	Audience      string `json:"aud"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Expiry        string `json:"exp"`
}

// Verifier checks Google ID tokens against the tokeninfo endpoint and maps
// them onto a port.Identity.
type Verifier struct {
	clientID string
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// NewVerifier creates a verifier for tokens issued to clientID.
func NewVerifier(clientID string) *Verifier {
	return NewVerifierWithEndpoint(clientID, defaultTokenInfoURL)
}

// NewVerifierWithEndpoint creates a verifier pointing at a custom tokeninfo URL (for testing).
func NewVerifierWithEndpoint(clientID, endpoint string) *Verifier {
	return &Verifier{
		clientID: clientID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Verify resolves idToken to an identity. Every rejection wraps
// domain.ErrUnauthorized.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*port.Identity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, reject("empty token")
	}

	info, err := v.lookup(ctx, idToken)
	if err != nil {
		zap.L().Debug("google.Verifier.Verify: tokeninfo lookup failed", zap.Error(err))
		return nil, reject(err.Error())
	}

	switch {
	case info.Audience != v.clientID:
		return nil, reject("audience mismatch")
	case !googleIssuers[info.Issuer]:
		return nil, reject("unexpected issuer " + info.Issuer)
	case v.expired(info.Expiry):
		return nil, reject("token expired")
	}

	return &port.Identity{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified == "true",
		Name:          info.Name,
	}, nil
}

func (v *Verifier) lookup(ctx context.Context, idToken string) (*tokenInfo, error) {
	u := v.endpoint + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating tokeninfo request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tokeninfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo returned status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding tokeninfo: %w", err)
	}
	return &info, nil
}

// expired reports whether exp, a unix timestamp, lies in the past. A missing
// value is left to tokeninfo, which refuses expired tokens itself.
func (v *Verifier) expired(exp string) bool {
	if exp == "" {
		return false
	}
	secs, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return true
	}
	return v.now().After(time.Unix(secs, 0))
}

func reject(reason string) error {
	return fmt.Errorf("%w: google id token: %s", domain.ErrUnauthorized, reason)
}

var _ port.IdentityVerifier = (*Verifier)(nil)
