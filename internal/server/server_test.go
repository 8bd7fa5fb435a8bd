package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfabrica/fabrica-toolgate/internal/access"
	"github.com/openfabrica/fabrica-toolgate/internal/catalog"
	"github.com/openfabrica/fabrica-toolgate/internal/dispatch"
	"github.com/openfabrica/fabrica-toolgate/internal/session"
)

const inventoryDoc = `{
  "openapi": "3.0.0",
  "info": {"title": "Inventory API"},
  "paths": {
    "/hosts": {
      "get": {
        "operationId": "listHosts",
        "summary": "List registered hosts",
        "responses": {"200": {"description": "ok"}}
      }
    },
    "/hosts/{hostId}": {
      "get": {
        "operationId": "getHost",
        "summary": "Fetch one host",
        "parameters": [
          {"name": "hostId", "in": "path", "required": true, "schema": {"type": "string"}}
        ],
        "responses": {"200": {"description": "ok"}}
      }
    }
  }
}`

type gateway struct {
	server   *httptest.Server
	sessions *session.Store
}

func newGateway(t *testing.T) *gateway {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/openapi.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(inventoryDoc))
		case "/hosts":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"hosts":[{"id":"h-1"},{"id":"h-2"}]}`))
		case "/hosts/h-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"h-1","state":"ready"}`))
		case "/hosts/broken":
			http.Error(w, "host store unavailable", http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	identity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := func(admin, auditor bool) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"records":[{"username":"u","is_admin":%t,"is_auditor":%t}]}`, admin, auditor)
		}
		switch r.Header.Get("Authorization") {
		case "Bearer admin-token":
			record(true, false)
		case "Bearer auditor-token":
			record(false, true)
		case "Bearer user-token":
			record(false, false)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(identity.Close)

	logger := zerolog.Nop()
	builder := catalog.NewBuilder(catalog.NewSource(5*time.Second), logger)
	cat := builder.Build(context.Background(), []catalog.ServiceConfig{
		{Name: "inventory", URL: backend.URL, Enabled: true, DefaultInclude: true},
	})
	require.Equal(t, 2, cat.Len())

	tiers, err := access.NewTiers([]access.Tier{
		{Name: access.TierAnonymous},
		{Name: "operator", Allow: []string{"inventory.listHosts"}},
		{Name: access.TierAdmin, Allow: []string{"inventory.listHosts", "inventory.getHost"}},
	})
	require.NoError(t, err)

	sessions := session.NewStore(session.NewHTTPIdentityResolver(identity.URL, 5*time.Second), logger)
	dispatcher := dispatch.New(5*time.Second, nil, nil, logger)

	srv := httptest.NewServer(New("test", "abc123", "2026-01-01", cat, tiers, sessions, dispatcher, nil, logger).Router())
	t.Cleanup(srv.Close)

	return &gateway{server: srv, sessions: sessions}
}

func (g *gateway) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, g.server.URL+path, reader)
	require.NoError(t, err)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (g *gateway) openSession(t *testing.T, credential string) string {
	t.Helper()
	resp, body := g.do(t, http.MethodPost, "/toolgate/v1/session",
		map[string]any{"credential": credential}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestOpenSession_AdminCredentialResolvesAdminTier(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, http.MethodPost, "/toolgate/v1/session",
		map[string]any{"credential": "admin-token"}, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "admin", body["tier"])
	assert.Equal(t, true, body["elevated"])
	assert.Equal(t, false, body["auditor"])
}

func TestOpenSession_RejectedCredential(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, http.MethodPost, "/toolgate/v1/session",
		map[string]any{"credential": "bogus"}, nil)

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body["detail"], "rejected")
	assert.Zero(t, g.sessions.Len())
}

func TestOpenSession_MissingCredential(t *testing.T) {
	g := newGateway(t)

	resp, _ := g.do(t, http.MethodPost, "/toolgate/v1/session", map[string]any{"credential": " "}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOpenSession_UnknownFieldRejected(t *testing.T) {
	g := newGateway(t)

	resp, _ := g.do(t, http.MethodPost, "/toolgate/v1/session",
		map[string]any{"credential": "user-token", "surprise": true}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTools_AnonymousSeesNothing(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, http.MethodGet, "/toolgate/v1/tools", nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "anonymous", body["tier"])
	assert.Empty(t, body["tools"])
}

func TestListTools_OperatorSeesAllowListedTools(t *testing.T) {
	g := newGateway(t)
	id := g.openSession(t, "user-token")

	resp, body := g.do(t, http.MethodGet, "/toolgate/v1/tools", nil,
		map[string]string{SessionHeader: id})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "operator", body["tier"])
	tools, _ := body["tools"].([]any)
	require.Len(t, tools, 1)
	first, _ := tools[0].(map[string]any)
	assert.Equal(t, "inventory.listHosts", first["name"])
}

func TestListTools_TierHeaderOverridesResolution(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, http.MethodGet, "/toolgate/v1/tools", nil,
		map[string]string{TierHeader: "operator"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "operator", body["tier"])
}

func TestListTools_UnknownTierOverrideIgnored(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, http.MethodGet, "/toolgate/v1/tools", nil,
		map[string]string{TierHeader: "superuser"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "anonymous", body["tier"])
}

func TestCallTool_SuccessReturnsStructuredPayload(t *testing.T) {
	g := newGateway(t)
	id := g.openSession(t, "admin-token")

	resp, body := g.do(t, http.MethodPost, "/toolgate/v1/tools/call",
		map[string]any{"name": "inventory.getHost", "arguments": map[string]any{"hostId": "h-1"}},
		map[string]string{SessionHeader: id})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, http.StatusOK, body["status_code"])
	data, _ := body["data"].(map[string]any)
	assert.Equal(t, "ready", data["state"])
}

func TestCallTool_UnknownToolIs404(t *testing.T) {
	g := newGateway(t)
	id := g.openSession(t, "admin-token")

	resp, _ := g.do(t, http.MethodPost, "/toolgate/v1/tools/call",
		map[string]any{"name": "inventory.rebootEverything"},
		map[string]string{SessionHeader: id})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCallTool_TierDeniedIs403(t *testing.T) {
	g := newGateway(t)
	id := g.openSession(t, "user-token")

	resp, body := g.do(t, http.MethodPost, "/toolgate/v1/tools/call",
		map[string]any{"name": "inventory.getHost", "arguments": map[string]any{"hostId": "h-1"}},
		map[string]string{SessionHeader: id})

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body["detail"], "operator")
}

func TestCallTool_BackendFailurePassesStatusThrough(t *testing.T) {
	g := newGateway(t)
	id := g.openSession(t, "admin-token")

	resp, _ := g.do(t, http.MethodPost, "/toolgate/v1/tools/call",
		map[string]any{"name": "inventory.getHost", "arguments": map[string]any{"hostId": "broken"}},
		map[string]string{SessionHeader: id})

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCloseSession_RevokesAccess(t *testing.T) {
	g := newGateway(t)
	id := g.openSession(t, "user-token")

	resp, _ := g.do(t, http.MethodDelete, "/toolgate/v1/session", nil,
		map[string]string{SessionHeader: id})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := g.do(t, http.MethodGet, "/toolgate/v1/tools", nil,
		map[string]string{SessionHeader: id})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "anonymous", body["tier"])

	// Closing again is a no-op.
	resp, _ = g.do(t, http.MethodDelete, "/toolgate/v1/session", nil,
		map[string]string{SessionHeader: id})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCatalogExport_RequiresAuditorOrElevatedSession(t *testing.T) {
	g := newGateway(t)

	resp, _ := g.do(t, http.MethodGet, "/toolgate/v1/catalog.json", nil, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	userID := g.openSession(t, "user-token")
	resp, _ = g.do(t, http.MethodGet, "/toolgate/v1/catalog.json", nil,
		map[string]string{SessionHeader: userID})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	auditorID := g.openSession(t, "auditor-token")
	resp, body := g.do(t, http.MethodGet, "/toolgate/v1/catalog.json", nil,
		map[string]string{SessionHeader: auditorID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tools, _ := body["tools"].([]any)
	require.Len(t, tools, 2)
	first, _ := tools[0].(map[string]any)
	assert.Equal(t, "inventory", first["service"])
	assert.NotEmpty(t, first["method"])
}

func TestHealthAndVersionEndpoints(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = g.do(t, http.MethodGet, "/version", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "abc123", body["commit"])

	resp, _ = g.do(t, http.MethodGet, "/readiness", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
