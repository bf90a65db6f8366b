package marshal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeOption tunes a single Decode call.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	instance Record
	partial  bool
	locale   string
}

// WithInstance supplies the persisted instance being updated. It drives
// uniqueness exclusion and partial-update backfill.
func WithInstance(instance Record) DecodeOption {
	return func(o *decodeOptions) {
		o.instance = instance
	}
}

// Partial marks the decode as a partial update: absent fields are not
// required and bound validator arguments are backfilled from the instance.
func Partial() DecodeOption {
	return func(o *decodeOptions) {
		o.partial = true
	}
}

// WithLocale selects the locale passed to the builder's Translator.
func WithLocale(locale string) DecodeOption {
	return func(o *decodeOptions) {
		o.locale = strings.TrimSpace(locale)
	}
}

// Entry is one encoded field in declaration order.
type Entry struct {
	Name  string
	Value any
}

// Decode validates a wire record and returns the typed attributes keyed by
// source path. Field coercion runs first, then the bound validator, then
// relation existence and uniqueness checks against the store.
func (m *Marshaller) Decode(ctx context.Context, data map[string]any, opts ...DecodeOption) (Record, error) {
	var o decodeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	loc := m.builder.localizer(o.locale)
	verr := &ValidationError{}
	attrs := make(Record)
	decoded := make([]FieldInfo, 0, len(m.fields))
	for _, info := range m.fields {
		if !decodable(info) {
			continue
		}
		raw, present := data[info.Name]
		if !present {
			if info.Rule.Required && !o.partial {
				loc.add(verr, info.Name, newMessage(MsgRequired))
			}
			continue
		}
		if raw == nil {
			if !info.Rule.AllowNull {
				loc.add(verr, info.Name, newMessage(MsgNull))
				continue
			}
			attrs[info.Name] = nil
			decoded = append(decoded, info)
			continue
		}
		value, err := info.Rule.coerce(raw)
		if err != nil {
			loc.add(verr, info.Name, err)
			continue
		}
		failed := false
		for _, validator := range info.Rule.Validators {
			if err := validator.Check(value); err != nil {
				loc.add(verr, info.Name, err)
				failed = true
			}
		}
		if failed {
			continue
		}
		attrs[info.Name] = value
		decoded = append(decoded, info)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if m.validator != nil {
		if err := m.runValidator(ctx, attrs, o); err != nil {
			return nil, err
		}
	}

	if err := m.checkStructure(ctx, attrs, decoded, o); err != nil {
		return nil, err
	}

	out := make(Record, len(attrs))
	for _, info := range decoded {
		out.Set(info.source(), attrs[info.Name])
	}
	return out, nil
}

func decodable(info FieldInfo) bool {
	if info.Rule.ReadOnly {
		return false
	}
	switch info.Group {
	case GroupComputed, GroupPrefetch:
		return false
	}
	return info.Rule.Kind != KindNested
}

// checkStructure verifies relation targets exist and unique values are not
// taken by another row. It is a no-op without a store.
func (m *Marshaller) checkStructure(ctx context.Context, attrs Record, decoded []FieldInfo, o decodeOptions) error {
	store := m.builder.opts.Store
	if store == nil {
		return nil
	}
	loc := m.builder.localizer(o.locale)
	verr := &ValidationError{}
	for _, info := range decoded {
		value := attrs[info.Name]
		if value == nil {
			continue
		}
		if info.Group == GroupRelation {
			if _, err := store.Get(ctx, info.Field.RelatedModel, value); err != nil {
				if !errors.Is(err, ErrNotFound) {
					return fmt.Errorf("marshal: resolve %s.%s: %w", m.model.Name, info.Field.Name, err)
				}
				loc.add(verr, info.Name, newMessage(MsgDoesNotExist, fmt.Sprint(value)))
				continue
			}
		}
		if check := info.Rule.Unique; check != nil {
			var exclude any
			if o.instance != nil && check.Exclude != "" {
				exclude, _ = o.instance.Lookup(check.Exclude)
			}
			taken, err := store.Exists(ctx, check.Model, check.Column, value, exclude)
			if err != nil {
				return fmt.Errorf("marshal: uniqueness %s.%s: %w", check.Model.Name, check.Column, err)
			}
			if taken {
				loc.add(verr, info.Name, newMessage(MsgUnique, check.Model.Name, info.Name))
			}
		}
	}
	return verr.orNil()
}

// Encode converts an instance into its wire representation. Values are read
// through each field's source path; missing values encode as nil.
func (m *Marshaller) Encode(instance Record) Record {
	out := make(Record, len(m.fields))
	for _, entry := range m.EncodeEntries(instance) {
		out[entry.Name] = entry.Value
	}
	return out
}

// EncodeEntries is Encode preserving field declaration order.
func (m *Marshaller) EncodeEntries(instance Record) []Entry {
	entries := make([]Entry, 0, len(m.fields))
	for _, info := range m.fields {
		value, _ := instance.Lookup(info.source())
		entries = append(entries, Entry{Name: info.Name, Value: info.Rule.represent(value)})
	}
	return entries
}

// EncodeJSON renders the encoded instance as a JSON object whose keys follow
// field declaration order.
func (m *Marshaller) EncodeJSON(instance Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.writeJSON(&buf, instance); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Marshaller) writeJSON(buf *bytes.Buffer, instance Record) error {
	buf.WriteByte('{')
	for i, info := range m.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(info.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, _ := instance.Lookup(info.source())
		if info.Rule.Kind == KindNested && info.Rule.Nested != nil {
			if nested, ok := asMap(value); ok {
				if err := info.Rule.Nested.writeJSON(buf, Record(nested)); err != nil {
					return err
				}
				continue
			}
		}
		raw, err := json.Marshal(info.Rule.represent(value))
		if err != nil {
			return fmt.Errorf("marshal: encode %s: %w", info.Name, err)
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return nil
}
