package schema

import (
	"strings"
	"unicode"
)

// Field types understood by the default rule tables. Hosts may declare other
// type names; those resolve through the configured type table or fall back
// to an opaque rule.
const (
	TypeAuto            = "AutoField"
	TypeBigAuto         = "BigAutoField"
	TypeInteger         = "IntegerField"
	TypeBigInteger      = "BigIntegerField"
	TypeSmallInteger    = "SmallIntegerField"
	TypePositiveInteger = "PositiveIntegerField"
	TypeFloat           = "FloatField"
	TypeDecimal         = "DecimalField"
	TypeChar            = "CharField"
	TypeText            = "TextField"
	TypeSlug            = "SlugField"
	TypeEmail           = "EmailField"
	TypeURL             = "URLField"
	TypeUUID            = "UUIDField"
	TypeBoolean         = "BooleanField"
	TypeDateTime        = "DateTimeField"
	TypeDate            = "DateField"
	TypeTime            = "TimeField"
	TypeJSON            = "JSONField"
	TypeForeignKey      = "ForeignKey"
	TypeOneToOne        = "OneToOneField"
)

// FieldKind separates plain columns from forward relations. Proxy and
// computed kinds are assigned later by the marshaller builder.
type FieldKind string

const (
	FieldKindConcrete FieldKind = "concrete"
	FieldKindRelation FieldKind = "relation"
)

// Model is the read-only descriptor of a backend data model: its ordered
// fields, its forward relations and its primary key.
type Model struct {
	Name        string   `json:"name" yaml:"name"`
	Table       string   `json:"table,omitempty" yaml:"table,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []*Field `json:"fields" yaml:"fields"`
}

// Field describes a single declared model field.
type Field struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Column      string   `json:"column,omitempty" yaml:"column,omitempty"`
	Null        bool     `json:"null,omitempty" yaml:"null,omitempty"`
	Blank       bool     `json:"blank,omitempty" yaml:"blank,omitempty"`
	Unique      bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	PrimaryKey  bool     `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	Editable    *bool    `json:"editable,omitempty" yaml:"editable,omitempty"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	MaxLength   int      `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Choices     []any    `json:"choices,omitempty" yaml:"choices,omitempty"`
	Validators  []string `json:"validators,omitempty" yaml:"validators,omitempty"`
	Related     string   `json:"related,omitempty" yaml:"related,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`

	// RelatedModel is populated by Catalog.Link or set directly by hosts that
	// declare models in Go.
	RelatedModel *Model `json:"-" yaml:"-"`

	owner *Model
}

// PK returns the primary key field, or nil when none is declared.
func (m *Model) PK() *Field {
	if m == nil {
		return nil
	}
	for _, field := range m.Fields {
		if field.PrimaryKey {
			return field
		}
	}
	return nil
}

// Field looks a field up by its logical name.
func (m *Model) Field(name string) (*Field, bool) {
	if m == nil {
		return nil, false
	}
	for _, field := range m.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return nil, false
}

// ConcreteFields returns the non-relation fields in declaration order.
func (m *Model) ConcreteFields() []*Field {
	if m == nil {
		return nil
	}
	out := make([]*Field, 0, len(m.Fields))
	for _, field := range m.Fields {
		if !field.IsRelation() {
			out = append(out, field)
		}
	}
	return out
}

// ForwardRelationFields returns foreign-key and one-to-one fields in
// declaration order.
func (m *Model) ForwardRelationFields() []*Field {
	if m == nil {
		return nil
	}
	var out []*Field
	for _, field := range m.Fields {
		if field.IsRelation() {
			out = append(out, field)
		}
	}
	return out
}

// TableName returns the storage collection backing the model.
func (m *Model) TableName() string {
	if m == nil {
		return ""
	}
	if m.Table != "" {
		return m.Table
	}
	return SnakeCase(m.Name)
}

// Model returns the model that declares the field. It is nil until the
// field's model has been linked.
func (f *Field) Model() *Model {
	return f.owner
}

// Kind reports whether the field is a plain column or a forward relation.
func (f *Field) Kind() FieldKind {
	if f.IsRelation() {
		return FieldKindRelation
	}
	return FieldKindConcrete
}

// IsRelation reports whether the field is a forward relation.
func (f *Field) IsRelation() bool {
	return f.Type == TypeForeignKey || f.Type == TypeOneToOne
}

// IsOneToOne reports whether the field is a one-to-one link.
func (f *Field) IsOneToOne() bool {
	return f.Type == TypeOneToOne
}

// IsAutoIncrement reports whether the field is an auto-incrementing integer.
func (f *Field) IsAutoIncrement() bool {
	return f.Type == TypeAuto || f.Type == TypeBigAuto
}

// IsEditable reports whether the field accepts writes.
func (f *Field) IsEditable() bool {
	if f.Editable == nil {
		return true
	}
	return *f.Editable
}

// HasDefault reports whether the field declares a default value.
func (f *Field) HasDefault() bool {
	return f.Default != nil
}

// AttName is the storage attribute holding the field's value. Relations
// store the related primary key under "<name>_id" unless a column is set.
func (f *Field) AttName() string {
	if f.Column != "" {
		return f.Column
	}
	if f.IsRelation() {
		return f.Name + "_id"
	}
	return f.Name
}

// SnakeCase converts CamelCase identifiers into snake_case.
func SnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PascalCase joins snake, kebab or spaced words into a PascalCase identifier.
func PascalCase(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
