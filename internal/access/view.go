package access

import "github.com/openfabrica/fabrica-toolgate/internal/catalog"

// Filter returns the catalog tools visible to one tier, in catalog order.
// This is pure set membership by tool name: allow-list entries absent from
// the catalog simply never match, and no other authorization happens here.
func Filter(cat *catalog.Catalog, tier Tier) []catalog.Tool {
	allowed := make(map[string]struct{}, len(tier.Allow))
	for _, name := range tier.Allow {
		allowed[name] = struct{}{}
	}

	visible := make([]catalog.Tool, 0, len(tier.Allow))
	for _, tool := range cat.List() {
		if _, ok := allowed[tool.Name]; ok {
			visible = append(visible, tool)
		}
	}
	return visible
}

// Visible reports whether one tool name is in the tier's allow-list.
func Visible(tier Tier, name string) bool {
	for _, allowed := range tier.Allow {
		if allowed == name {
			return true
		}
	}
	return false
}
