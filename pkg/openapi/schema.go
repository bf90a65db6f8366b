package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-modelgen/pkg/marshal"
)

const componentPrefix = "#/components/schemas/"

// ObjectSchema converts a marshaller's field set into an object schema.
// Nested prefetch shapes are inlined.
func ObjectSchema(m *marshal.Marshaller) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Title = m.Name()
	if model := m.Model(); model != nil && model.Description != "" {
		schema.Description = model.Description
	}
	for _, info := range m.Fields() {
		schema.Properties[info.Name] = openapi3.NewSchemaRef("", FieldSchema(info))
		if info.Rule.Required && !info.Rule.ReadOnly {
			schema.Required = append(schema.Required, info.Name)
		}
	}
	return schema
}

// FieldSchema maps a single field rule onto a schema.
func FieldSchema(info marshal.FieldInfo) *openapi3.Schema {
	rule := info.Rule
	var schema *openapi3.Schema
	switch rule.Kind {
	case marshal.KindInteger:
		schema = openapi3.NewIntegerSchema()
	case marshal.KindFloat:
		schema = openapi3.NewFloat64Schema()
	case marshal.KindDecimal:
		schema = openapi3.NewStringSchema().WithFormat("decimal")
	case marshal.KindString:
		schema = openapi3.NewStringSchema()
	case marshal.KindEmail:
		schema = openapi3.NewStringSchema().WithFormat("email")
	case marshal.KindURL:
		schema = openapi3.NewStringSchema().WithFormat("uri")
	case marshal.KindSlug:
		schema = openapi3.NewStringSchema().WithPattern(`^[-a-zA-Z0-9_]+$`)
	case marshal.KindUUID:
		schema = openapi3.NewUUIDSchema()
	case marshal.KindBoolean:
		schema = openapi3.NewBoolSchema()
	case marshal.KindDateTime:
		schema = openapi3.NewDateTimeSchema()
	case marshal.KindDate:
		schema = openapi3.NewStringSchema().WithFormat("date")
	case marshal.KindTime:
		schema = openapi3.NewStringSchema().WithFormat("time")
	case marshal.KindChoice:
		schema = openapi3.NewSchema()
		schema.Enum = append([]any(nil), rule.Choices...)
	case marshal.KindNested:
		if rule.Nested != nil {
			schema = ObjectSchema(rule.Nested)
		} else {
			schema = openapi3.NewObjectSchema()
		}
	default:
		// Opaque values carry no type constraint.
		return &openapi3.Schema{ReadOnly: rule.ReadOnly, Description: description(info)}
	}

	if rule.MaxLength > 0 && rule.IsString() {
		schema.WithMaxLength(int64(rule.MaxLength))
	}
	schema.Nullable = rule.AllowNull
	schema.ReadOnly = rule.ReadOnly
	schema.Description = description(info)
	return schema
}

func description(info marshal.FieldInfo) string {
	if info.Field == nil {
		return ""
	}
	return info.Field.Description
}

func componentRef(name string, schema *openapi3.Schema) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: componentPrefix + name, Value: schema}
}
