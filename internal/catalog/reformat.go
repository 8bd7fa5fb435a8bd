package catalog

import "strings"

// Reformatter applies one backend's transformation to an extracted tool.
// Returning ok=false vetoes the tool, dropping it from the catalog entirely.
// Implementations must be idempotent and free of side effects beyond the
// returned value.
type Reformatter interface {
	Reformat(tool Tool) (Tool, bool)
}

// Backend identifiers of the platform services this gateway fronts.
const (
	ServiceInventory = "inventory"
	ServiceDeploy    = "deploy"
	ServiceObserve   = "observe"
	ServiceRegistry  = "registry"
)

// ReformatterFor returns the strategy for one backend. Unknown backends get
// plain name namespacing so aggregate names stay collision-free.
func ReformatterFor(service string) Reformatter {
	switch strings.TrimSpace(service) {
	case ServiceInventory:
		return inventoryReformatter{}
	case ServiceDeploy:
		return deployReformatter{}
	case ServiceObserve:
		return observeReformatter{}
	case ServiceRegistry:
		return registryReformatter{}
	default:
		return namespaceReformatter{prefix: strings.TrimSpace(service) + "."}
	}
}

// namespaceReformatter prefixes tool names with the backend identifier.
type namespaceReformatter struct {
	prefix string
}

func (r namespaceReformatter) Reformat(tool Tool) (Tool, bool) {
	return namespaceTool(tool, r.prefix), true
}

// inventoryReformatter namespaces and truncates descriptions to the first
// paragraph; the inventory contract embeds long multi-paragraph prose that
// drowns the catalog listing.
type inventoryReformatter struct{}

func (inventoryReformatter) Reformat(tool Tool) (Tool, bool) {
	tool = namespaceTool(tool, ServiceInventory+".")
	tool.Description = firstParagraph(tool.Description)
	return tool, true
}

// deployReformatter namespaces and corrects the URL prefix: the deploy
// contract declares paths relative to its mount point, so dispatch needs the
// /api/v2 prefix inserted.
type deployReformatter struct{}

func (deployReformatter) Reformat(tool Tool) (Tool, bool) {
	tool = namespaceTool(tool, ServiceDeploy+".")
	tool.PathTemplate = ensurePathPrefix(tool.PathTemplate, "/api/v2")
	return tool, true
}

// observeReformatter namespaces and vetoes internal operations that the
// observe contract exposes but does not support for external callers.
type observeReformatter struct{}

func (observeReformatter) Reformat(tool Tool) (Tool, bool) {
	if strings.HasPrefix(tool.PathTemplate, "/internal/") || strings.Contains(tool.Name, "internal") {
		return Tool{}, false
	}
	return namespaceTool(tool, ServiceObserve+"."), true
}

// registryReformatter namespaces, vetoes legacy paths, and trims
// descriptions; the registry contract still lists pre-v2 routes that are
// kept only for old clients.
type registryReformatter struct{}

func (registryReformatter) Reformat(tool Tool) (Tool, bool) {
	if strings.HasPrefix(tool.PathTemplate, "/legacy/") {
		return Tool{}, false
	}
	tool = namespaceTool(tool, ServiceRegistry+".")
	tool.Description = firstParagraph(tool.Description)
	return tool, true
}

func namespaceTool(tool Tool, prefix string) Tool {
	if prefix != "." && !strings.HasPrefix(tool.Name, prefix) {
		tool.Name = prefix + tool.Name
	}
	return tool
}

func firstParagraph(description string) string {
	trimmed := strings.TrimSpace(description)
	if at := strings.Index(trimmed, "\n\n"); at >= 0 {
		return strings.TrimSpace(trimmed[:at])
	}
	return trimmed
}

func ensurePathPrefix(pathTemplate, prefix string) string {
	if pathTemplate == prefix || strings.HasPrefix(pathTemplate, prefix+"/") {
		return pathTemplate
	}
	return prefix + pathTemplate
}
