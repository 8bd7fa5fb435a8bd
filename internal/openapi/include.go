package openapi

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// IncludeExtension is the vendor extension toggling whether an operation is
// exposed as a tool. It may appear at operation, path-item, or document
// level; the nearest level wins.
const IncludeExtension = "x-toolgate"

// includeDecision is one precedence level's verdict on exposing an operation.
type includeDecision int

const (
	decisionAbsent includeDecision = iota
	decisionInclude
	decisionExclude
)

// decideLevel evaluates the inclusion extension on one node. A value that is
// not boolean-like is logged and treated as absent so evaluation falls
// through to the next precedence level.
func decideLevel(node map[string]any, scope string, logger zerolog.Logger) includeDecision {
	if node == nil {
		return decisionAbsent
	}
	raw, present := node[IncludeExtension]
	if !present {
		return decisionAbsent
	}

	switch typed := raw.(type) {
	case bool:
		if typed {
			return decisionInclude
		}
		return decisionExclude
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		if err == nil {
			if parsed {
				return decisionInclude
			}
			return decisionExclude
		}
	}

	logger.Warn().
		Str("extension", IncludeExtension).
		Str("scope", scope).
		Interface("value", raw).
		Msg("inclusion flag is not boolean-like; treating as absent")
	return decisionAbsent
}

// included resolves the full precedence chain:
// operation > path item > document > configured default.
func included(op, pathItem, docRoot map[string]any, defaultInclude bool, logger zerolog.Logger) bool {
	if decision := decideLevel(op, "operation", logger); decision != decisionAbsent {
		return decision == decisionInclude
	}
	if decision := decideLevel(pathItem, "path", logger); decision != decisionAbsent {
		return decision == decisionInclude
	}
	if decision := decideLevel(docRoot, "document", logger); decision != decisionAbsent {
		return decision == decisionInclude
	}
	return defaultInclude
}
