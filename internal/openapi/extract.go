package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Diagnostic severities attached to extracted tools.
const (
	SeverityInfo = "info"
	SeverityWarn = "warn"
)

// Diagnostic records one non-fatal extraction anomaly for a tool.
type Diagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Parameter locations relevant to dispatching.
const (
	InPath  = "path"
	InQuery = "query"
)

// Parameter is one declared operation parameter.
type Parameter struct {
	Name     string `json:"name"`
	In       string `json:"in"`
	Required bool   `json:"required"`
}

// Tool is one extracted operation, prior to backend-specific reformatting.
type Tool struct {
	Name         string
	Description  string
	InputSchema  map[string]any
	Method       string
	PathTemplate string
	Parameters   []Parameter
	Deprecated   bool
	Diagnostics  []Diagnostic
}

// methodOrder fixes the per-path extraction order: decoded JSON objects do
// not preserve member order, and collision suffixes must be deterministic.
var methodOrder = []string{"get", "put", "post", "delete", "patch", "head", "options", "trace"}

// Extractor walks one document's operations and produces raw tool
// definitions.
type Extractor struct {
	doc    *Document
	logger zerolog.Logger
}

// NewExtractor creates an extractor for one parsed document.
func NewExtractor(doc *Document, logger zerolog.Logger) *Extractor {
	return &Extractor{
		doc:    doc,
		logger: logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract produces one tool per (path, method) pair carrying an operation
// body. Anomalies in a single operation never abort extraction of the rest.
func (e *Extractor) Extract(defaultInclude bool) []Tool {
	paths := e.doc.Paths()
	pathKeys := make([]string, 0, len(paths))
	for key := range paths {
		pathKeys = append(pathKeys, key)
	}
	sort.Strings(pathKeys)

	names := newNameAllocator()
	tools := make([]Tool, 0, len(pathKeys))

	for _, pathTemplate := range pathKeys {
		pathItem, ok := paths[pathTemplate].(map[string]any)
		if !ok {
			e.logger.Warn().Str("path", pathTemplate).Msg("path item is not an object; skipping")
			continue
		}
		for _, method := range methodOrder {
			op, ok := pathItem[method].(map[string]any)
			if !ok {
				continue
			}
			if !included(op, pathItem, e.doc.Root(), defaultInclude, e.logger) {
				continue
			}
			tools = append(tools, e.extractOperation(method, pathTemplate, pathItem, op, names))
		}
	}

	return tools
}

func (e *Extractor) extractOperation(
	method, pathTemplate string,
	pathItem, op map[string]any,
	names *nameAllocator,
) Tool {
	tool := Tool{
		Method:       strings.ToUpper(method),
		PathTemplate: pathTemplate,
	}

	base, declared := declaredOperationID(op)
	if !declared {
		base = synthesizeName(method, pathTemplate)
		tool.diagnose(SeverityWarn, fmt.Sprintf("operation %s %s has no operation id; synthesized name %s", tool.Method, pathTemplate, base))
	}
	sanitized := sanitizeName(base)
	if sanitized != base {
		tool.diagnose(SeverityWarn, fmt.Sprintf("name %s contained disallowed characters; sanitized to %s", base, sanitized))
	}
	tool.Name = names.allocate(sanitized)
	if tool.Name != sanitized {
		tool.diagnose(SeverityWarn, fmt.Sprintf("name %s collided; renamed to %s", sanitized, tool.Name))
	}

	tool.Description = operationDescription(op)
	if tool.Description == "" {
		tool.diagnose(SeverityInfo, fmt.Sprintf("operation %s has no description", tool.Name))
	}
	if summary, _ := op["summary"].(string); strings.TrimSpace(summary) == "" {
		tool.diagnose(SeverityInfo, fmt.Sprintf("operation %s has no summary", tool.Name))
	}

	if deprecated, _ := op["deprecated"].(bool); deprecated {
		// Deprecated operations are tagged but still extracted; exclusion is
		// a downstream catalog policy, not an extractor decision.
		tool.Deprecated = true
		tool.diagnose(SeverityInfo, fmt.Sprintf("operation %s is deprecated", tool.Name))
	}

	merged := mergeParameters(rawParameterList(pathItem), rawParameterList(op))
	translator := NewTranslator(e.doc)
	properties := map[string]any{}
	required := make([]string, 0, len(merged))

	for _, raw := range merged {
		name, _ := raw["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		location, _ := raw["in"].(string)
		paramRequired, _ := raw["required"].(bool)

		tool.Parameters = append(tool.Parameters, Parameter{
			Name:     name,
			In:       strings.TrimSpace(location),
			Required: paramRequired,
		})

		translated := translator.Translate(raw["schema"], nil)
		if asMap, ok := translated.(map[string]any); ok {
			if description, _ := raw["description"].(string); strings.TrimSpace(description) != "" {
				if _, exists := asMap["description"]; !exists {
					asMap["description"] = strings.TrimSpace(description)
				}
			}
		}
		properties[name] = translated
		if paramRequired {
			required = append(required, name)
		}
	}

	if bodySchema, bodyRequired, ok := e.requestBodyProperty(op, translator, &tool); ok {
		properties["requestBody"] = bodySchema
		if bodyRequired {
			required = append(required, "requestBody")
		}
	}

	for _, warning := range translator.Warnings() {
		tool.diagnose(SeverityWarn, warning)
	}

	tool.InputSchema = map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		tool.InputSchema["required"] = required
	}

	e.logToolDiagnostics(tool)
	return tool
}

// requestBodyProperty synthesizes the single requestBody property. A JSON
// content type is preferred; any other declared type is represented as an
// opaque string carrying the content type in its description.
func (e *Extractor) requestBodyProperty(op map[string]any, translator *Translator, tool *Tool) (any, bool, bool) {
	body, ok := op["requestBody"].(map[string]any)
	if !ok {
		return nil, false, false
	}
	content, ok := body["content"].(map[string]any)
	if !ok || len(content) == 0 {
		return nil, false, false
	}
	bodyRequired, _ := body["required"].(bool)

	contentTypes := make([]string, 0, len(content))
	for contentType := range content {
		contentTypes = append(contentTypes, contentType)
	}
	sort.Strings(contentTypes)

	for _, contentType := range contentTypes {
		if !isJSONContentType(contentType) {
			continue
		}
		media, _ := content[contentType].(map[string]any)
		return translator.Translate(media["schema"], nil), bodyRequired, true
	}

	first := contentTypes[0]
	tool.diagnose(SeverityInfo, fmt.Sprintf("request body has no JSON content type; passing %s through as opaque text", first))
	return map[string]any{
		"type":        "string",
		"description": fmt.Sprintf("opaque request body (content type: %s)", first),
	}, bodyRequired, true
}

// mergeParameters merges path-item and operation parameter lists by
// (name, location) identity. An operation parameter overrides the path-item
// one in place; new operation parameters append.
func mergeParameters(pathParams, opParams []map[string]any) []map[string]any {
	type key struct{ name, in string }
	identity := func(raw map[string]any) key {
		name, _ := raw["name"].(string)
		in, _ := raw["in"].(string)
		return key{name: strings.TrimSpace(name), in: strings.TrimSpace(in)}
	}

	merged := make([]map[string]any, 0, len(pathParams)+len(opParams))
	index := make(map[key]int, len(pathParams))
	for _, raw := range pathParams {
		index[identity(raw)] = len(merged)
		merged = append(merged, raw)
	}
	for _, raw := range opParams {
		if at, exists := index[identity(raw)]; exists {
			merged[at] = raw
			continue
		}
		index[identity(raw)] = len(merged)
		merged = append(merged, raw)
	}
	return merged
}

func rawParameterList(node map[string]any) []map[string]any {
	raw, _ := node["parameters"].([]any)
	params := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if asMap, ok := item.(map[string]any); ok {
			params = append(params, asMap)
		}
	}
	return params
}

func declaredOperationID(op map[string]any) (string, bool) {
	id, _ := op["operationId"].(string)
	id = strings.TrimSpace(id)
	return id, id != ""
}

func operationDescription(op map[string]any) string {
	if description, _ := op["description"].(string); strings.TrimSpace(description) != "" {
		return strings.TrimSpace(description)
	}
	summary, _ := op["summary"].(string)
	return strings.TrimSpace(summary)
}

func isJSONContentType(contentType string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if at := strings.IndexByte(normalized, ';'); at >= 0 {
		normalized = strings.TrimSpace(normalized[:at])
	}
	return normalized == "application/json" || strings.HasSuffix(normalized, "+json")
}

func (t *Tool) diagnose(severity, message string) {
	t.Diagnostics = append(t.Diagnostics, Diagnostic{Severity: severity, Message: message})
}

func (e *Extractor) logToolDiagnostics(tool Tool) {
	for _, diagnostic := range tool.Diagnostics {
		entry := e.logger.Info()
		if diagnostic.Severity == SeverityWarn {
			entry = e.logger.Warn()
		}
		entry.Str("tool", tool.Name).Msg(diagnostic.Message)
	}
}
