package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openfabrica/fabrica-toolgate/internal/access"
	"github.com/openfabrica/fabrica-toolgate/internal/dispatch"
	"github.com/openfabrica/fabrica-toolgate/internal/session"
)

type openSessionRequest struct {
	Credential   string `json:"credential"`
	TierOverride string `json:"tier_override"`
}

type openSessionResponse struct {
	SessionID string `json:"session_id"`
	Tier      string `json:"tier"`
	Elevated  bool   `json:"elevated"`
	Auditor   bool   `json:"auditor"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Credential) == "" {
		respondProblem(w, r, http.StatusBadRequest, "credential is required")
		return
	}

	sess, err := s.sessions.Open(r.Context(), req.Credential, req.TierOverride, r.UserAgent())
	if err != nil {
		respondProblem(w, r, http.StatusUnauthorized, "credential rejected by identity service")
		return
	}
	s.metrics.SetActiveSessions(s.sessions.Len())

	tier := s.tiers.Resolve(true, sess.Flags.Elevated, sess.TierOverride)
	respondJSON(w, http.StatusCreated, openSessionResponse{
		SessionID: sess.ID,
		Tier:      tier.Name,
		Elevated:  sess.Flags.Elevated,
		Auditor:   sess.Flags.Auditor,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		respondProblem(w, r, http.StatusBadRequest, fmt.Sprintf("%s header is required", SessionHeader))
		return
	}

	s.sessions.Close(id)
	s.metrics.SetActiveSessions(s.sessions.Len())
	w.WriteHeader(http.StatusNoContent)
}

// callerContext resolves the request's session and tier. Requests without a
// valid session proceed as anonymous.
func (s *Server) callerContext(r *http.Request) (session.Session, access.Tier) {
	sess, authenticated := s.sessions.Get(r.Header.Get(SessionHeader))

	override := strings.TrimSpace(r.Header.Get(TierHeader))
	if override == "" {
		override = sess.TierOverride
	}

	tier := s.tiers.Resolve(authenticated, sess.Flags.Elevated, override)
	return sess, tier
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	_, tier := s.callerContext(r)

	visible := access.Filter(s.catalog, tier)
	tools := make([]toolDescriptor, 0, len(visible))
	for _, tool := range visible {
		tools = append(tools, toolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tier":  tier.Name,
		"tools": tools,
	})
}

type callToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	sess, tier := s.callerContext(r)

	var req callToolRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondProblem(w, r, http.StatusBadRequest, "tool name is required")
		return
	}

	tool, ok := s.catalog.Lookup(name)
	if !ok {
		respondProblem(w, r, http.StatusNotFound, fmt.Sprintf("unknown tool: %s", name))
		return
	}
	if !access.Visible(tier, name) {
		respondProblem(w, r, http.StatusForbidden, fmt.Sprintf("tool %s is not available to tier %s", name, tier.Name))
		return
	}

	result, err := s.dispatcher.Call(r.Context(), tool, req.Arguments, dispatch.Caller{
		Credential: sess.Credential,
		SessionID:  sess.ID,
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		respondProblem(w, r, backendErrorStatus(err), err.Error())
		return
	}

	payload := map[string]any{
		"tool":        tool.Name,
		"status_code": result.StatusCode,
	}
	if result.Structured {
		payload["data"] = result.Data
	} else {
		payload["text"] = result.Text
	}
	respondJSON(w, http.StatusOK, payload)
}

// backendErrorStatus maps a dispatch failure onto the gateway's response
// status. Backend statuses pass through; transport failures become 502.
func backendErrorStatus(err error) int {
	var backendErr *dispatch.BackendError
	if errors.As(err, &backendErr) {
		return backendErr.StatusCode()
	}
	return http.StatusBadGateway
}

type catalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Service     string         `json:"service"`
	Size        int            `json:"size"`
}

// handleCatalogExport serves the unfiltered catalog. It is an audit surface:
// only sessions whose identity carries the auditor or elevated flag may read
// it.
func (s *Server) handleCatalogExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.Header.Get(SessionHeader))
	if !ok || (!sess.Flags.Auditor && !sess.Flags.Elevated) {
		respondProblem(w, r, http.StatusForbidden, "catalog export requires an auditor or elevated session")
		return
	}

	tools := s.catalog.List()
	entries := make([]catalogEntry, 0, len(tools))
	for _, tool := range tools {
		entries = append(entries, catalogEntry{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
			Method:      tool.Method,
			Path:        tool.PathTemplate,
			Service:     tool.Service,
			Size:        tool.Size,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"tools": entries})
}

func decodeJSONStrict(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("request must contain exactly one JSON object")
	}
	return nil
}
