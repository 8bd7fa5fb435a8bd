package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfabrica/fabrica-toolgate/internal/openapi"
)

// Builder loads all configured backend descriptions and assembles the
// aggregate tool catalog. Build runs once, synchronously, before the gateway
// accepts callers; rebuilding requires a full re-run.
type Builder struct {
	source *Source
	logger zerolog.Logger
}

// NewBuilder creates a catalog builder.
func NewBuilder(source *Source, logger zerolog.Logger) *Builder {
	return &Builder{
		source: source,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Build assembles the catalog from every enabled backend. A load or parse
// failure for one backend is logged and that backend contributes zero tools;
// it never aborts the build.
func (b *Builder) Build(ctx context.Context, services []ServiceConfig) *Catalog {
	aggregate := make([]Tool, 0, 64)
	names := map[string]struct{}{}

	for _, svc := range services {
		if !svc.Enabled {
			b.logger.Info().Str("service", svc.Name).Msg("backend disabled; skipping")
			continue
		}
		tools, err := b.buildService(ctx, svc)
		if err != nil {
			b.logger.Error().Err(err).Str("service", svc.Name).Msg("backend contributes no tools")
			continue
		}
		for _, tool := range tools {
			tool.Name = uniqueName(names, tool.Name)
			aggregate = append(aggregate, tool)
		}
		b.logger.Info().Str("service", svc.Name).Int("tools", len(tools)).Msg("backend extracted")
	}

	for i := range aggregate {
		aggregate[i].Size = toolSize(aggregate[i])
	}
	// Stable sort keeps extraction order among equal sizes, so exports are
	// deterministic across builds of the same inputs.
	sort.SliceStable(aggregate, func(i, j int) bool {
		return aggregate[i].Size > aggregate[j].Size
	})

	b.logger.Info().Int("tools", len(aggregate)).Msg("catalog built")
	return newCatalog(aggregate)
}

func (b *Builder) buildService(ctx context.Context, svc ServiceConfig) ([]Tool, error) {
	data, err := b.source.Load(ctx, svc)
	if err != nil {
		return nil, err
	}
	doc, err := openapi.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing api description for %s: %w", svc.Name, err)
	}

	extracted := openapi.NewExtractor(doc, b.logger.With().Str("service", svc.Name).Logger()).Extract(svc.DefaultInclude)
	reformatter := ReformatterFor(svc.Name)
	baseURL := strings.TrimRight(strings.TrimSpace(svc.URL), "/")

	tools := make([]Tool, 0, len(extracted))
	for _, raw := range extracted {
		tool := Tool{
			Name:         raw.Name,
			Description:  raw.Description,
			InputSchema:  raw.InputSchema,
			Method:       raw.Method,
			PathTemplate: raw.PathTemplate,
			Parameters:   raw.Parameters,
			Service:      svc.Name,
			BaseURL:      baseURL,
			Deprecated:   raw.Deprecated,
		}

		reformatted, ok := reformatter.Reformat(tool)
		if !ok {
			b.logger.Info().Str("service", svc.Name).Str("tool", tool.Name).Msg("tool vetoed by reformatter")
			continue
		}
		// Deprecated tools are dropped after reformatting across all
		// backends. Some backends flag deprecation unreliably; applying the
		// drop uniformly anyway is a deliberate catalog policy, not a bug.
		if reformatted.Deprecated {
			b.logger.Info().Str("service", svc.Name).Str("tool", reformatted.Name).Msg("deprecated tool dropped")
			continue
		}
		tools = append(tools, reformatted)
	}
	return tools, nil
}

// uniqueName suffixes cross-backend collisions. Per-backend namespacing makes
// these rare, but the aggregate invariant is that catalog names are unique.
func uniqueName(used map[string]struct{}, base string) string {
	if _, taken := used[base]; !taken {
		used[base] = struct{}{}
		return base
	}
	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s_%d", base, suffix)
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
	}
}
