// Package session owns caller sessions: credential validation at open,
// role-flag bookkeeping, and idempotent teardown.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	identityPath           = "/v1/identity"
	defaultIdentityTimeout = 10 * time.Second

	maxIdentityBytes = 1 << 20
)

// Flags are the role flags resolved from the identity endpoint. They are
// evaluated exactly once, when the session opens.
type Flags struct {
	Elevated bool
	Auditor  bool
}

// IdentityResolver exchanges a caller credential for role flags. Any failure
// is a hard validation failure: no flags are inferred from a broken
// response.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (Flags, error)
}

// HTTPIdentityResolver resolves identity against the platform auth service.
type HTTPIdentityResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPIdentityResolver creates a resolver for the given auth base URL.
func NewHTTPIdentityResolver(baseURL string, timeout time.Duration) *HTTPIdentityResolver {
	if timeout <= 0 {
		timeout = defaultIdentityTimeout
	}
	return &HTTPIdentityResolver{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type identityRecord struct {
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	IsAuditor bool   `json:"is_auditor"`
}

type identityResponse struct {
	Records []identityRecord `json:"records"`
}

// Resolve calls the identity endpoint with the caller credential. A
// non-success status, malformed body, or empty record set all fail
// validation.
func (r *HTTPIdentityResolver) Resolve(ctx context.Context, credential string) (Flags, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+identityPath, nil)
	if err != nil {
		return Flags{}, fmt.Errorf("building identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(credential))
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Flags{}, fmt.Errorf("calling identity endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Flags{}, fmt.Errorf("identity endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIdentityBytes))
	if err != nil {
		return Flags{}, fmt.Errorf("reading identity response: %w", err)
	}

	var parsed identityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Flags{}, fmt.Errorf("decoding identity response: %w", err)
	}
	if len(parsed.Records) == 0 {
		return Flags{}, fmt.Errorf("identity response contains no records")
	}

	// Flags aggregate across records: the platform returns one record per
	// linked organization and any elevated grant counts.
	flags := Flags{}
	for _, record := range parsed.Records {
		flags.Elevated = flags.Elevated || record.IsAdmin
		flags.Auditor = flags.Auditor || record.IsAuditor
	}
	return flags, nil
}
