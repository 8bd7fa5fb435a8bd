package openapi

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractFrom(t *testing.T, payload string, defaultInclude bool) []Tool {
	t.Helper()

	doc := mustDocument(t, payload)
	return NewExtractor(doc, zerolog.Nop()).Extract(defaultInclude)
}

func toolByName(t *testing.T, tools []Tool, name string) Tool {
	t.Helper()

	for _, tool := range tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not extracted (got %d tools)", name, len(tools))
	return Tool{}
}

func TestExtract_DeclaredOperationIDPreferred(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {"/things": {"get": {
			"operationId": "listThings",
			"summary": "List things",
			"description": "Lists all things.",
			"responses": {}
		}}}
	}`, true)

	require.Len(t, tools, 1)
	assert.Equal(t, "listThings", tools[0].Name)
	assert.Equal(t, "GET", tools[0].Method)
	assert.Equal(t, "/things", tools[0].PathTemplate)
	assert.Equal(t, "Lists all things.", tools[0].Description)
}

func TestExtract_MissingOperationIDSynthesizesNameWithWarning(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {"/things/{id}": {"get": {"responses": {}}}}
	}`, true)

	require.Len(t, tools, 1)
	tool := tools[0]
	assert.Equal(t, "getThingsById", tool.Name)

	var sawNameWarning bool
	for _, diagnostic := range tool.Diagnostics {
		if diagnostic.Severity == SeverityWarn && diagnostic.Message != "" {
			sawNameWarning = true
		}
	}
	assert.True(t, sawNameWarning, "expected WARN diagnostic for missing operation id")
}

func TestExtract_CollidingBaseNamesGetDistinctFinalNames(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {
			"/a": {"get": {"operationId": "list", "responses": {}}},
			"/b": {"get": {"operationId": "list", "responses": {}}}
		}
	}`, true)

	require.Len(t, tools, 2)
	// Paths extract in sorted order, so /a keeps the bare name.
	assert.Equal(t, "list", tools[0].Name)
	assert.Equal(t, "list_2", tools[1].Name)
}

func TestExtract_OperationInclusionFlagWinsOverDocumentFlag(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"x-toolgate": false,
		"paths": {
			"/visible": {"get": {"operationId": "visible", "x-toolgate": true, "responses": {}}},
			"/hidden": {"get": {"operationId": "hidden", "responses": {}}}
		}
	}`, true)

	require.Len(t, tools, 1)
	assert.Equal(t, "visible", tools[0].Name)
}

func TestExtract_ParameterMergeOperationOverridesPathItem(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {"/things/{id}": {
			"parameters": [
				{"name": "id", "in": "path", "required": true, "schema": {"type": "string"}},
				{"name": "verbose", "in": "query", "schema": {"type": "boolean"}}
			],
			"get": {
				"operationId": "getThing",
				"parameters": [
					{"name": "verbose", "in": "query", "required": true, "schema": {"type": "string"}}
				],
				"responses": {}
			}
		}}
	}`, true)

	tool := toolByName(t, tools, "getThing")
	require.Len(t, tool.Parameters, 2)

	// Merge preserves path-item order with in-place override.
	assert.Equal(t, Parameter{Name: "id", In: "path", Required: true}, tool.Parameters[0])
	assert.Equal(t, Parameter{Name: "verbose", In: "query", Required: true}, tool.Parameters[1])

	properties := tool.InputSchema["properties"].(map[string]any)
	assert.Equal(t, "string", properties["verbose"].(map[string]any)["type"])
	assert.ElementsMatch(t, []string{"id", "verbose"}, tool.InputSchema["required"])
}

func TestExtract_RequestBodyPrefersJSONContentType(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {"/things": {"post": {
			"operationId": "createThing",
			"requestBody": {
				"required": true,
				"content": {
					"application/xml": {"schema": {"type": "string"}},
					"application/json": {"schema": {"type": "object", "properties": {"name": {"type": "string"}}}}
				}
			},
			"responses": {}
		}}}
	}`, true)

	tool := toolByName(t, tools, "createThing")
	properties := tool.InputSchema["properties"].(map[string]any)
	body := properties["requestBody"].(map[string]any)
	assert.Equal(t, "object", body["type"])
	assert.Contains(t, tool.InputSchema["required"], "requestBody")
}

func TestExtract_NonJSONBodyBecomesOpaqueString(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {"/upload": {"post": {
			"operationId": "upload",
			"requestBody": {"content": {"application/octet-stream": {}}},
			"responses": {}
		}}}
	}`, true)

	tool := toolByName(t, tools, "upload")
	body := tool.InputSchema["properties"].(map[string]any)["requestBody"].(map[string]any)
	assert.Equal(t, "string", body["type"])
	assert.Contains(t, body["description"], "application/octet-stream")
}

func TestExtract_DeprecatedOperationsStillExtractedButTagged(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {"/old": {"get": {"operationId": "oldThing", "deprecated": true, "responses": {}}}}
	}`, true)

	tool := toolByName(t, tools, "oldThing")
	assert.True(t, tool.Deprecated)
}

func TestExtract_MissingDescriptionRecordsInfoDiagnostic(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {"/bare": {"get": {"operationId": "bare", "responses": {}}}}
	}`, true)

	tool := toolByName(t, tools, "bare")
	var infoCount int
	for _, diagnostic := range tool.Diagnostics {
		if diagnostic.Severity == SeverityInfo {
			infoCount++
		}
	}
	assert.GreaterOrEqual(t, infoCount, 2, "missing description and summary each record an INFO diagnostic")
}

func TestExtract_DefaultExcludeSkipsUnflaggedOperations(t *testing.T) {
	tools := extractFrom(t, `{
		"openapi": "3.0.0",
		"paths": {
			"/on": {"get": {"operationId": "on", "x-toolgate": true, "responses": {}}},
			"/off": {"get": {"operationId": "off", "responses": {}}}
		}
	}`, false)

	require.Len(t, tools, 1)
	assert.Equal(t, "on", tools[0].Name)
}
