package projection

import (
	"errors"

	"github.com/goliatone/go-modelgen/pkg/marshal"
)

// Type tags shared by the default table.
const (
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeAny     = "any"
	TypeUnknown = "unknown"
)

// ErrUnmappedRule is returned when a rule kind has no entry in the type table
// and the table has no fallback, or when strict projection is enabled.
var ErrUnmappedRule = errors.New("projection: unmapped serialization rule")

// TypeTable maps rule kinds to external type tags. The marshal.KindUnknown
// entry acts as the fallback for kinds without their own entry.
type TypeTable map[marshal.Kind]string

// DefaultTypeTable returns the rule to type mapping used when no table is
// configured.
func DefaultTypeTable() TypeTable {
	return TypeTable{
		marshal.KindInteger:  TypeNumber,
		marshal.KindFloat:    TypeNumber,
		marshal.KindDecimal:  TypeString,
		marshal.KindString:   TypeString,
		marshal.KindEmail:    TypeString,
		marshal.KindURL:      TypeString,
		marshal.KindSlug:     TypeString,
		marshal.KindUUID:     TypeString,
		marshal.KindDateTime: TypeString,
		marshal.KindDate:     TypeString,
		marshal.KindTime:     TypeString,
		marshal.KindBoolean:  TypeBoolean,
		marshal.KindChoice:   TypeString,
		marshal.KindJSON:     TypeAny,
		marshal.KindUnknown:  TypeUnknown,
	}
}

// Clone returns a copy safe to mutate.
func (t TypeTable) Clone() TypeTable {
	out := make(TypeTable, len(t))
	for kind, tag := range t {
		out[kind] = tag
	}
	return out
}

// Lookup resolves kind, reporting whether the fallback entry was used.
func (t TypeTable) Lookup(kind marshal.Kind) (tag string, fallback bool, err error) {
	if tag, ok := t[kind]; ok && kind != marshal.KindUnknown {
		return tag, false, nil
	}
	if tag, ok := t[marshal.KindUnknown]; ok {
		return tag, true, nil
	}
	return "", true, ErrUnmappedRule
}
