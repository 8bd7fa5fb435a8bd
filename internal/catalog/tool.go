// Package catalog builds and holds the aggregate tool catalog derived from
// the configured backend API descriptions.
package catalog

import (
	"encoding/json"

	"github.com/openfabrica/fabrica-toolgate/internal/openapi"
)

// Tool is one invocable catalog entry. Instances are immutable after the
// catalog is built.
type Tool struct {
	Name         string
	Description  string
	InputSchema  map[string]any
	Method       string
	PathTemplate string
	Parameters   []openapi.Parameter
	Service      string
	BaseURL      string
	Deprecated   bool
	Size         int
}

// Catalog is the ordered, read-only aggregate of all backend tools. It is
// safe for unsynchronized concurrent reads.
type Catalog struct {
	tools  []Tool
	byName map[string]Tool
}

func newCatalog(tools []Tool) *Catalog {
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	return &Catalog{tools: tools, byName: byName}
}

// List returns all tools in catalog order.
func (c *Catalog) List() []Tool {
	if c == nil {
		return nil
	}
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Lookup returns one tool by name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	if c == nil {
		return Tool{}, false
	}
	tool, ok := c.byName[name]
	return tool, ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tools)
}

// toolSize is the serialized byte length of the externally visible fields.
// The catalog is sorted descending by this metric; the ordering has no
// functional effect but keeps exports deterministic.
func toolSize(tool Tool) int {
	encoded, err := json.Marshal(struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		InputSchema map[string]any `json:"inputSchema"`
	}{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: tool.InputSchema,
	})
	if err != nil {
		return len(tool.Name) + len(tool.Description)
	}
	return len(encoded)
}
