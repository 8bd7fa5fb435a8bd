// Package dispatch executes catalog tools against their originating backends.
package dispatch

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
	"time"

	"github.com/rs/zerolog"

	"github.com/openfabrica/fabrica-toolgate/internal/audit"
	"github.com/openfabrica/fabrica-toolgate/internal/catalog"
	"github.com/openfabrica/fabrica-toolgate/internal/metrics"
	"github.com/openfabrica/fabrica-toolgate/internal/openapi"
)

// requestBodyArg carries the request payload inside the argument map.
const requestBodyArg = "requestBody"

const maxResponseBytes = 16 << 20

// Caller identifies who is invoking a tool. The credential is forwarded to
// the backend; the rest only feeds the audit trail.
type Caller struct {
	Credential string
	SessionID  string
	UserAgent  string
}

// Result is a classified backend response.
type Result struct {
	StatusCode  int
	ContentType string
	// Structured is true when the backend answered with JSON; Data then
	// holds the decoded payload and Text is empty. Otherwise Text holds
	// the raw body.
	Structured bool
	Data       any
	Text       string
	TargetURL  string
	Elapsed    time.Duration
}

// BackendError reports a non-success backend response.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, body)
}

// StatusCode reports the backend status for callers mapping errors to HTTP.
func (e *BackendError) StatusCode() int {
	return e.Status
}

// Dispatcher performs tool invocations and records every attempt.
type Dispatcher struct {
	client  *http.Client
	sink    audit.Sink
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a dispatcher. The sink and metrics may be nil.
func New(timeout time.Duration, sink audit.Sink, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		client:  &http.Client{Timeout: timeout},
		sink:    sink,
		metrics: m,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Call invokes the tool's backend operation with the given arguments.
func (d *Dispatcher) Call(ctx context.Context, tool catalog.Tool, args map[string]any, caller Caller) (Result, error) {
	start := time.Now()
	target := buildTargetURL(tool, args)

	result, err := d.execute(ctx, tool, target, args, caller)
	result.TargetURL = target
	result.Elapsed = time.Since(start)

	d.metrics.ObserveDispatch(tool.Service, result.Elapsed, err)
	d.record(tool, caller, result, err)
	return result, err
}

func (d *Dispatcher) execute(ctx context.Context, tool catalog.Tool, target string, args map[string]any, caller Caller) (Result, error) {
	var body io.Reader
	contentType := ""
	if payload, ok := args[requestBodyArg]; ok && methodHasBody(tool.Method) {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Result{}, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, tool.Method, target, body)
	if err != nil {
		return Result{}, fmt.Errorf("building backend request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if credential := strings.TrimSpace(caller.Credential); credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling backend %s: %w", tool.Service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{StatusCode: resp.StatusCode}, fmt.Errorf("reading backend response: %w", err)
	}

	result := classify(resp, raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &BackendError{Status: resp.StatusCode, Body: string(raw)}
	}
	return result, nil
}

func classify(resp *http.Response, raw []byte) Result {
	contentType := resp.Header.Get("Content-Type")
	result := Result{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}

	if strings.Contains(strings.ToLower(contentType), "json") && len(bytes.TrimSpace(raw)) > 0 {
		var data any
		if err := json.Unmarshal(raw, &data); err == nil {
			result.Structured = true
			result.Data = data
			return result
		}
	}
	result.Text = string(raw)
	return result
}

// buildTargetURL substitutes path parameters and appends query parameters
// from the argument map. Path placeholders with no matching argument are
// left in place so the failure surfaces at the backend.
func buildTargetURL(tool catalog.Tool, args map[string]any) string {
	path := tool.PathTemplate
	query := url.Values{}

	for _, param := range tool.Parameters {
		value, ok := args[param.Name]
		if !ok {
			continue
		}
		switch param.In {
		case openapi.InPath:
			path = strings.ReplaceAll(path, "{"+param.Name+"}", url.PathEscape(formatArgValue(value)))
		case openapi.InQuery:
			query.Set(param.Name, formatArgValue(value))
		}
	}

	target := tool.BaseURL + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target
}

func formatArgValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func methodHasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (d *Dispatcher) record(tool catalog.Tool, caller Caller, result Result, err error) {
	if d.sink == nil {
		return
	}

	attempt := audit.Attempt{
		Tool:       tool.Name,
		Service:    tool.Service,
		Method:     tool.Method,
		TargetURL:  result.TargetURL,
		UserAgent:  caller.UserAgent,
		SessionID:  caller.SessionID,
		StatusCode: result.StatusCode,
		Result:     "success",
		Elapsed:    result.Elapsed,
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		attempt.Result = "error"
		attempt.ErrorDetail = err.Error()
	}
	d.sink.Record(attempt)
}
