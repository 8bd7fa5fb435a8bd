package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 10 * time.Second

	// Backends publish their contract at a well-known location relative to
	// the configured base URL.
	specPath = "/openapi.json"

	maxDocumentBytes = 16 << 20
)

// ServiceConfig describes one backend whose API description is ingested.
type ServiceConfig struct {
	Name string
	// URL is the backend base URL; the description document is fetched from
	// its well-known spec path. Dispatch targets the same base.
	URL string
	// Path is a local description document; it takes precedence over the
	// network fetch when set.
	Path           string
	Enabled        bool
	DefaultInclude bool
}

// Source loads backend API description documents.
type Source struct {
	client *http.Client
}

// NewSource creates a document source with the given fetch timeout
// (zero means the default).
func NewSource(timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Source{client: &http.Client{Timeout: timeout}}
}

// Load returns the raw description document for one backend. A configured
// local path takes precedence over the network fetch.
func (s *Source) Load(ctx context.Context, svc ServiceConfig) ([]byte, error) {
	if path := strings.TrimSpace(svc.Path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading api description for %s: %w", svc.Name, err)
		}
		return data, nil
	}

	base := strings.TrimRight(strings.TrimSpace(svc.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("service %s has neither a local path nor a url", svc.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+specPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building api description request for %s: %w", svc.Name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching api description for %s: %w", svc.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching api description for %s: unexpected status %d", svc.Name, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("reading api description for %s: %w", svc.Name, err)
	}
	return data, nil
}
