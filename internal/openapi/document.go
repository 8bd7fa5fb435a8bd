// Package openapi ingests backend API description documents and extracts
// portable tool definitions from them.
package openapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one parsed API description.
//
// The platform backends publish both JSON and YAML contracts, so parsing
// tries JSON first and falls back to YAML. The decoded tree is kept as
// generic maps: the dialects differ enough between backends that a typed
// model would reject documents we still want to extract from.
type Document struct {
	root map[string]any
}

// ParseDocument decodes a raw API description document.
func ParseDocument(data []byte) (*Document, error) {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		if yamlErr := yaml.Unmarshal(data, &root); yamlErr != nil {
			return nil, fmt.Errorf("decoding api description: %w", err)
		}
	}
	if len(root) == 0 {
		return nil, fmt.Errorf("api description is empty")
	}
	return &Document{root: root}, nil
}

// Title returns the document's declared title, if any.
func (d *Document) Title() string {
	if d == nil {
		return ""
	}
	info, _ := d.root["info"].(map[string]any)
	title, _ := info["title"].(string)
	return strings.TrimSpace(title)
}

// Paths returns the raw path-item map of the document.
func (d *Document) Paths() map[string]any {
	if d == nil {
		return nil
	}
	paths, _ := d.root["paths"].(map[string]any)
	return paths
}

// Root returns the raw document tree.
func (d *Document) Root() map[string]any {
	if d == nil {
		return nil
	}
	return d.root
}

// ResolveRef resolves a local JSON pointer reference ("#/components/...")
// against the document. External references are reported as unresolved.
func (d *Document) ResolveRef(ref string) (map[string]any, bool) {
	if d == nil {
		return nil, false
	}
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, "#/") {
		return nil, false
	}

	var node any = d.root
	for _, segment := range strings.Split(strings.TrimPrefix(trimmed, "#/"), "/") {
		asMap, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		// JSON pointer escaping per RFC 6901.
		key := strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		node, ok = asMap[key]
		if !ok {
			return nil, false
		}
	}

	resolved, ok := node.(map[string]any)
	return resolved, ok
}
