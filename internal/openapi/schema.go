package openapi

import (
	"fmt"
	"strings"
)

// Translator converts one backend schema dialect node at a time into a
// portable JSON-Schema-like representation.
//
// Translation never fails: anything it cannot make sense of degrades to a
// generic object placeholder and a warning is accumulated for the caller to
// attach as a tool diagnostic.
type Translator struct {
	doc      *Document
	warnings []string
}

// NewTranslator creates a translator bound to one document for reference
// resolution.
func NewTranslator(doc *Document) *Translator {
	return &Translator{doc: doc}
}

// Warnings returns warnings accumulated since the last call and clears them.
func (t *Translator) Warnings() []string {
	if t == nil || len(t.warnings) == 0 {
		return nil
	}
	out := t.warnings
	t.warnings = nil
	return out
}

func (t *Translator) warnf(format string, args ...any) {
	if t == nil {
		return
	}
	t.warnings = append(t.warnings, fmt.Sprintf(format, args...))
}

// Translate converts one schema node. The visited set holds the references
// already being expanded on the current path: re-entering one breaks the
// cycle with a generic object placeholder. A reference is removed from the
// set on return, so reuse of the same node in a sibling branch is not
// flagged as a cycle.
func (t *Translator) Translate(node any, visited map[string]struct{}) any {
	if visited == nil {
		visited = map[string]struct{}{}
	}

	switch typed := node.(type) {
	case bool:
		// Boolean schemas are valid JSON Schema and pass through unchanged.
		return typed
	case map[string]any:
		return t.translateMap(typed, visited)
	case nil:
		return genericObject()
	default:
		t.warnf("schema node has unsupported kind %T", node)
		return genericObject()
	}
}

func (t *Translator) translateMap(node map[string]any, visited map[string]struct{}) any {
	if ref, ok := node["$ref"].(string); ok {
		trimmed := strings.TrimSpace(ref)
		if _, seen := visited[trimmed]; seen {
			return genericObject()
		}
		resolved, ok := t.doc.ResolveRef(trimmed)
		if !ok {
			t.warnf("unresolved schema reference %s", trimmed)
			return genericObject()
		}
		visited[trimmed] = struct{}{}
		out := t.translateMap(resolved, visited)
		delete(visited, trimmed)
		return out
	}

	out := map[string]any{}

	if translated, ok := translateType(node); ok {
		out["type"] = translated
	}
	for _, key := range []string{"description", "enum", "format", "default"} {
		if value, ok := node[key]; ok {
			out[key] = value
		}
	}

	if properties, ok := node["properties"].(map[string]any); ok {
		translated := make(map[string]any, len(properties))
		for name, child := range properties {
			translated[name] = t.Translate(child, visited)
		}
		out["properties"] = translated
	}
	if items, ok := node["items"]; ok {
		out["items"] = t.Translate(items, visited)
	}
	if required, ok := node["required"].([]any); ok && len(required) > 0 {
		out["required"] = required
	}

	if len(out) == 0 {
		return genericObject()
	}
	return out
}

// translateType normalizes the type field: integer collapses to number and a
// nullable flag folds into a union with "null".
func translateType(node map[string]any) (any, bool) {
	rawType, ok := node["type"].(string)
	if !ok {
		return nil, false
	}

	normalized := strings.TrimSpace(rawType)
	if normalized == "integer" {
		normalized = "number"
	}

	if nullable, ok := node["nullable"].(bool); ok && nullable {
		return []any{normalized, "null"}, true
	}
	return normalized, true
}

func genericObject() map[string]any {
	return map[string]any{"type": "object"}
}
