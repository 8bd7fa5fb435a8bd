package openapi

import (
	"fmt"
	"strings"
)

// synthesizeName builds a tool name from an HTTP method and path template
// when an operation declares no identifier of its own.
//
// Each path segment is title-cased and concatenated after the lowercased
// method. A trailing path-parameter segment becomes a By<Param> suffix;
// non-trailing parameters are folded into the title-cased name like any
// other segment.
func synthesizeName(method, pathTemplate string) string {
	var builder strings.Builder
	builder.WriteString(strings.ToLower(strings.TrimSpace(method)))

	segments := splitPathSegments(pathTemplate)
	for i, segment := range segments {
		param, isParam := parameterSegment(segment)
		if isParam && i == len(segments)-1 {
			builder.WriteString("By")
			builder.WriteString(titleCase(param))
			continue
		}
		if isParam {
			builder.WriteString(titleCase(param))
			continue
		}
		builder.WriteString(titleCase(segment))
	}

	return builder.String()
}

func splitPathSegments(pathTemplate string) []string {
	parts := strings.Split(strings.Trim(strings.TrimSpace(pathTemplate), "/"), "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			segments = append(segments, strings.TrimSpace(part))
		}
	}
	return segments
}

func parameterSegment(segment string) (string, bool) {
	if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
		return strings.TrimSpace(segment[1 : len(segment)-1]), true
	}
	return "", false
}

func titleCase(segment string) string {
	var builder strings.Builder
	upperNext := true
	for _, r := range segment {
		switch {
		case r == '-' || r == '_' || r == '.':
			upperNext = true
		case upperNext:
			builder.WriteString(strings.ToUpper(string(r)))
			upperNext = false
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// sanitizeName maps a candidate tool name onto the allowed character set
// (letters, digits, underscore, hyphen, dot). Anything else becomes an
// underscore.
func sanitizeName(name string) string {
	var builder strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			builder.WriteRune(r)
		default:
			builder.WriteByte('_')
		}
	}
	return builder.String()
}

// nameAllocator hands out unique tool names in extraction order. The first
// holder of a base name keeps it bare; later collisions get an incrementing
// numeric suffix.
type nameAllocator struct {
	used map[string]struct{}
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: map[string]struct{}{}}
}

func (a *nameAllocator) allocate(base string) string {
	if _, taken := a.used[base]; !taken {
		a.used[base] = struct{}{}
		return base
	}
	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s_%d", base, suffix)
		if _, taken := a.used[candidate]; !taken {
			a.used[candidate] = struct{}{}
			return candidate
		}
	}
}
