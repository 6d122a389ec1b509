package httpapi

import (
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/generate"
)

// OpenAPIVersion is the version string emitted in Document.
const OpenAPIVersion = "3.0.3"

var (
	scaleType = reflect.TypeOf(draft.Scale{})
	timeType  = reflect.TypeOf(time.Time{})
)

var (
	documentOnce sync.Once
	document     map[string]any
)

// Document returns the OpenAPI description of the routes served by
// NewRouter. Schemas are derived from the Go request and response types.
func Document() map[string]any {
	documentOnce.Do(func() {
		document = buildDocument()
	})
	return document
}

func (h *Handler) openAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.document)
	}
}

func buildDocument() map[string]any {
	registry := newComponentRegistry()
	request := registry.ref(reflect.TypeOf(generate.Request{}))
	survey := registry.ref(reflect.TypeOf(draft.RawSurvey{}))
	failure := registry.ref(reflect.TypeOf(ErrorResponse{}))
	health := registry.ref(reflect.TypeOf(HealthResponse{}))

	errorResponse := func(description string) map[string]any {
		return jsonResponse(description, failure)
	}

	return map[string]any{
		"openapi": OpenAPIVersion,
		"info": map[string]any{
			"title":   "Survey generation API",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			generate.GeneratePath: map[string]any{
				"post": map[string]any{
					"operationId": "generateSurvey",
					"summary":     "Generate a survey from a description",
					"requestBody": map[string]any{
						"required": true,
						"content":  map[string]any{"application/json": map[string]any{"schema": request}},
					},
					"responses": map[string]any{
						"200": jsonResponse("Generated or cached survey", survey),
						"400": errorResponse("Invalid request body"),
						"422": errorResponse("Generated survey failed quality rules"),
						"502": errorResponse("Provider failure"),
					},
				},
			},
			"/health": map[string]any{
				"get": map[string]any{
					"operationId": "health",
					"responses":   map[string]any{"200": jsonResponse("Service is up", health)},
				},
			},
		},
		"components": map[string]any{"schemas": registry.schemas},
	}
}

func jsonResponse(description string, schema map[string]any) map[string]any {
	return map[string]any{
		"description": description,
		"content":     map[string]any{"application/json": map[string]any{"schema": schema}},
	}
}

// componentRegistry turns every named struct into a component schema and
// hands out $ref pointers to it.
type componentRegistry struct {
	names   map[reflect.Type]string
	schemas map[string]any
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{names: map[reflect.Type]string{}, schemas: map[string]any{}}
}

func (r *componentRegistry) ref(rt reflect.Type) map[string]any {
	name, ok := r.names[rt]
	if !ok {
		name = r.uniqueName(rt.Name())
		r.names[rt] = name
		r.schemas[name] = map[string]any{}
		r.schemas[name] = r.structSchema(rt)
	}
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func (r *componentRegistry) uniqueName(name string) string {
	candidate := name
	for i := 2; ; i++ {
		if _, taken := r.schemas[candidate]; !taken {
			return candidate
		}
		candidate = name + strconv.Itoa(i)
	}
}

func (r *componentRegistry) schemaFor(rt reflect.Type) map[string]any {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	switch rt {
	case scaleType:
		return map[string]any{"type": "number", "nullable": true}
	case timeType:
		return map[string]any{"type": "string", "format": "date-time"}
	}

	switch rt.Kind() {
	case reflect.Interface:
		return map[string]any{}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": r.schemaFor(rt.Elem())}
	case reflect.Map:
		return map[string]any{"type": "object", "additionalProperties": r.schemaFor(rt.Elem())}
	case reflect.Struct:
		if rt.Name() == "" {
			return r.structSchema(rt)
		}
		return r.ref(rt)
	default:
		return map[string]any{"type": "string", "format": "go:" + rt.String()}
	}
}

func (r *componentRegistry) structSchema(rt reflect.Type) map[string]any {
	properties := map[string]any{}
	var required []string
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, optional, skip := parseJSONName(field)
		if skip {
			continue
		}
		schema := r.schemaFor(field.Type)
		applyFieldMetadata(schema, field)
		properties[name] = schema
		if isFieldRequired(field, optional) {
			required = append(required, name)
		}
	}

	out := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		sort.Strings(required)
		out["required"] = required
	}
	return out
}

func parseJSONName(field reflect.StructField) (name string, optional bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false, false
	}
	segments := strings.Split(tag, ",")
	if segments[0] == "-" {
		return "", false, true
	}
	name = segments[0]
	if name == "" {
		name = field.Name
	}
	for _, segment := range segments[1:] {
		if segment == "omitempty" || segment == "omitzero" {
			optional = true
		}
	}
	return name, optional, false
}

func isFieldRequired(field reflect.StructField, optional bool) bool {
	for _, rule := range strings.Split(field.Tag.Get("validate"), ",") {
		if rule == "required" {
			return true
		}
	}
	return !optional && field.Type.Kind() != reflect.Pointer
}

// applyFieldMetadata copies doc, enum and length tags onto schema. A $ref
// schema is left untouched since OpenAPI 3.0 ignores siblings of $ref.
func applyFieldMetadata(schema map[string]any, field reflect.StructField) {
	if _, isRef := schema["$ref"]; isRef {
		return
	}
	if doc := strings.TrimSpace(field.Tag.Get("doc")); doc != "" {
		schema["description"] = doc
	}
	if enum := field.Tag.Get("enum"); enum != "" {
		var values []any
		for _, part := range strings.Split(enum, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
		schema["enum"] = values
	}
	for _, tag := range []string{"minLength", "maxLength"} {
		if raw := field.Tag.Get(tag); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				schema[tag] = n
			}
		}
	}
}
