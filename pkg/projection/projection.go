package projection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-modelgen/pkg/marshal"
)

// TypeDeclaration is one projected field. Nested holds the declarations of
// the embedded shape when Type names a nested marshaller.
type TypeDeclaration struct {
	Name     string            `json:"name"`
	Optional bool              `json:"optional,omitempty"`
	Readonly bool              `json:"readonly,omitempty"`
	Type     string            `json:"type"`
	Nested   []TypeDeclaration `json:"nested,omitempty"`
}

// Option customises projection.
type Option func(*options)

type options struct {
	table  TypeTable
	strict bool
}

// WithTypeTable replaces the default rule to type mapping.
func WithTypeTable(table TypeTable) Option {
	return func(o *options) {
		if table != nil {
			o.table = table.Clone()
		}
	}
}

// WithStrict makes any rule that falls through to the fallback entry fail
// with ErrUnmappedRule.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

func newOptions(opts []Option) options {
	o := options{table: DefaultTypeTable()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Project walks the marshaller's field set in declaration order and returns
// one declaration per field.
func Project(m *marshal.Marshaller, opts ...Option) ([]TypeDeclaration, error) {
	if m == nil {
		return nil, fmt.Errorf("projection: marshaller is required")
	}
	return project(m, newOptions(opts))
}

func project(m *marshal.Marshaller, o options) ([]TypeDeclaration, error) {
	fields := m.Fields()
	out := make([]TypeDeclaration, 0, len(fields))
	for _, info := range fields {
		decl, err := declare(info, o)
		if err != nil {
			return nil, fmt.Errorf("projection: %s.%s: %w", m.Name(), info.Name, err)
		}
		out = append(out, decl)
	}
	return out, nil
}

func declare(info marshal.FieldInfo, o options) (TypeDeclaration, error) {
	decl := TypeDeclaration{
		Name:     info.Name,
		Optional: info.Rule.AllowNull,
		Readonly: info.Rule.ReadOnly,
	}
	rule := info.Rule
	switch {
	case rule.Kind == marshal.KindNested && rule.Nested != nil:
		nested, err := project(rule.Nested, o)
		if err != nil {
			return TypeDeclaration{}, err
		}
		decl.Type = rule.Nested.Name()
		decl.Nested = nested
		return decl, nil
	case rule.Kind == marshal.KindChoice && len(rule.Choices) > 0:
		decl.Type = literalUnion(rule.Choices)
		return decl, nil
	}

	tag, fallback, err := o.table.Lookup(rule.Kind)
	if err != nil {
		return TypeDeclaration{}, err
	}
	if fallback && o.strict {
		return TypeDeclaration{}, fmt.Errorf("%w: %s", ErrUnmappedRule, rule.Kind)
	}
	decl.Type = tag
	return decl, nil
}

func literalUnion(choices []any) string {
	parts := make([]string, 0, len(choices))
	for _, choice := range choices {
		raw, err := json.Marshal(choice)
		if err != nil {
			raw, _ = json.Marshal(fmt.Sprint(choice))
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, " | ")
}
