package leo

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultIdentityURL is the identity provider that exchanges access keys
// for short-lived session tokens.
const DefaultIdentityURL = "https://api.descope.com"

// exchangeTimeout bounds a single token exchange. A hung identity
// provider must not block unrelated local work.
const exchangeTimeout = 10 * time.Second

// TokenProvider exchanges a long-lived API key for short-lived bearer
// tokens and refreshes them transparently before each authenticated call.
// It hands out an immutable token string per request; nothing downstream
// mutates shared credential state.
type TokenProvider struct {
	httpClient  *http.Client
	identityURL string
	projectID   string
	apiKey      string
	logger      *slog.Logger

	mu    sync.Mutex
	token string
}

// NewTokenProvider creates a provider for the given project credentials.
// If httpClient is nil, http.DefaultClient is used. If identityURL is
// empty, DefaultIdentityURL is used.
func NewTokenProvider(httpClient *http.Client, identityURL, projectID, apiKey string, logger *slog.Logger) *TokenProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if identityURL == "" {
		identityURL = DefaultIdentityURL
	}
	return &TokenProvider{
		httpClient:  httpClient,
		identityURL: identityURL,
		projectID:   projectID,
		apiKey:      apiKey,
		logger:      logger,
	}
}

// Token returns a bearer token for the next request, refreshing it when
// the current one is expired or absent. On exchange failure it returns
// the previous (possibly invalid) token and lets the downstream call fail
// naturally: a transient identity-provider outage must not halt local
// work that may still succeed or that the caller will retry.
func (p *TokenProvider) Token(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if TokenValid(p.token) {
		return p.token
	}

	fresh, err := p.exchange(ctx)
	if err != nil {
		p.logger.Warn("token exchange failed, keeping previous token",
			slog.String("error", err.Error()),
		)
		return p.token
	}

	p.token = fresh
	p.logger.Debug("session token refreshed")
	return p.token
}

// exchange trades the API key for a session token. Bounded by
// exchangeTimeout regardless of the caller's context.
func (p *TokenProvider) exchange(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	url := p.identityURL + "/v1/auth/accesskey/exchange"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("creating exchange request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.projectID+":"+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchanging access key: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading exchange response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("access key exchange returned status %d: %s", resp.StatusCode, body)
	}

	token := gjson.GetBytes(body, "sessionJwt").String()
	if token == "" {
		return "", fmt.Errorf("exchange response has no sessionJwt")
	}
	return token, nil
}

// TokenValid reports whether the token's exp claim is still in the
// future. The signature is not verified here; the server does that. A
// malformed or empty token is simply invalid, never an error.
func TokenValid(token string) bool {
	exp, ok := tokenExpiry(token)
	return ok && time.Until(exp) > 0
}

// tokenExpiry decodes the JWT payload and extracts the exp claim
// (seconds since epoch).
func tokenExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	exp := gjson.GetBytes(payload, "exp")
	if !exp.Exists() {
		return time.Time{}, false
	}
	return time.Unix(exp.Int(), 0), true
}
