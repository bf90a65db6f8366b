package marshal

import "github.com/goliatone/go-modelgen/pkg/schema"

// TypeTable maps an exact field type to a rule kind. Types registered here
// bypass metadata inference and only derive Required from nullability.
type TypeTable map[string]Kind

// Clone returns a copy safe to mutate.
func (t TypeTable) Clone() TypeTable {
	out := make(TypeTable, len(t))
	for name, kind := range t {
		out[name] = kind
	}
	return out
}

// standardKinds is the metadata-inference mapping used for types absent from
// the configured TypeTable.
var standardKinds = map[string]Kind{
	schema.TypeAuto:            KindInteger,
	schema.TypeBigAuto:         KindInteger,
	schema.TypeInteger:         KindInteger,
	schema.TypeBigInteger:      KindInteger,
	schema.TypeSmallInteger:    KindInteger,
	schema.TypePositiveInteger: KindInteger,
	schema.TypeFloat:           KindFloat,
	schema.TypeDecimal:         KindDecimal,
	schema.TypeChar:            KindString,
	schema.TypeText:            KindString,
	schema.TypeSlug:            KindSlug,
	schema.TypeEmail:           KindEmail,
	schema.TypeURL:             KindURL,
	schema.TypeUUID:            KindUUID,
	schema.TypeBoolean:         KindBoolean,
	schema.TypeDateTime:        KindDateTime,
	schema.TypeDate:            KindDate,
	schema.TypeTime:            KindTime,
	schema.TypeJSON:            KindJSON,
}

// StandardKind returns the inferred kind for a field type, KindUnknown when
// the type is not recognised.
func StandardKind(fieldType string) Kind {
	if kind, ok := standardKinds[fieldType]; ok {
		return kind
	}
	return KindUnknown
}
