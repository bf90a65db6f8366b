package marshal

import (
	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Group classifies how a field entered the marshaller's field set.
type Group string

const (
	GroupConcrete Group = "concrete"
	GroupProxy    Group = "proxy"
	GroupRelation Group = "relation"
	GroupComputed Group = "computed"
	GroupPrefetch Group = "prefetch"
)

// FieldInfo pairs an external field name with its source descriptor and
// serialization rule. Field is nil for computed entries.
type FieldInfo struct {
	Name  string
	Field *schema.Field
	Rule  Rule
	Group Group
}

// source returns the dotted attribute path used to read and write the value.
func (f FieldInfo) source() string {
	if f.Rule.Source != "" {
		return f.Rule.Source
	}
	return f.Name
}

// Marshaller encodes, decodes and validates one model's external
// representation. It is immutable once built and safe for concurrent use.
type Marshaller struct {
	name      string
	model     *schema.Model
	builder   *Builder
	fields    []FieldInfo
	index     map[string]int
	computed  []FieldInfo
	relFields map[string]*schema.Field
	validator *Validator
}

// Name is the type name projected for this shape.
func (m *Marshaller) Name() string {
	return m.name
}

// Model returns the descriptor the marshaller was built from.
func (m *Marshaller) Model() *schema.Model {
	return m.model
}

// Validator returns the bound validator, if any.
func (m *Marshaller) Validator() *Validator {
	return m.validator
}

// Fields returns the resolved field set in declaration order: concrete and
// proxy fields, forward relations, then any prefetch additions.
func (m *Marshaller) Fields() []FieldInfo {
	return append([]FieldInfo(nil), m.fields...)
}

// FieldNames returns the external names of Fields.
func (m *Marshaller) FieldNames() []string {
	names := make([]string, 0, len(m.fields))
	for _, info := range m.fields {
		names = append(names, info.Name)
	}
	return names
}

// Field returns the named entry of the resolved field set.
func (m *Marshaller) Field(name string) (FieldInfo, bool) {
	idx, ok := m.index[name]
	if !ok {
		return FieldInfo{}, false
	}
	return m.fields[idx], true
}

// ComputedFields returns the declared computed fields. They are not part of
// the base shape and only appear once requested through Expand.
func (m *Marshaller) ComputedFields() []FieldInfo {
	return append([]FieldInfo(nil), m.computed...)
}

// RelationModelField returns the relation descriptor behind an attribute
// name such as "author_id".
func (m *Marshaller) RelationModelField(attname string) (*schema.Field, bool) {
	field, ok := m.relFields[attname]
	return field, ok
}

// put appends info or replaces an existing entry with the same name in place.
func (m *Marshaller) put(info FieldInfo) {
	if idx, ok := m.index[info.Name]; ok {
		m.fields[idx] = info
		return
	}
	m.index[info.Name] = len(m.fields)
	m.fields = append(m.fields, info)
}

func (m *Marshaller) clone() *Marshaller {
	out := &Marshaller{
		name:      m.name,
		model:     m.model,
		builder:   m.builder,
		fields:    append([]FieldInfo(nil), m.fields...),
		index:     make(map[string]int, len(m.index)),
		computed:  append([]FieldInfo(nil), m.computed...),
		relFields: m.relFields,
		validator: m.validator,
	}
	for name, idx := range m.index {
		out.index[name] = idx
	}
	return out
}
