package marshal

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-modelgen/pkg/schema"
)

// ValidateFunc is a multi-field validator. args holds exactly the field names
// the validator was registered with; relation names carry the resolved
// related record instead of the raw key. Failures should be reported as a
// *ValidationError.
type ValidateFunc func(ctx context.Context, args map[string]any) error

// Validator binds a ValidateFunc to the field names it consumes.
type Validator struct {
	fields []string
	fn     ValidateFunc
}

// NewValidator registers fn against the named fields. The names are checked
// against the model when the marshaller is built.
func NewValidator(fn ValidateFunc, fields ...string) *Validator {
	return &Validator{fields: append([]string(nil), fields...), fn: fn}
}

// Fields returns the bound field names in registration order.
func (v *Validator) Fields() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.fields...)
}

func (v *Validator) wants(name string) bool {
	for _, field := range v.fields {
		if field == name {
			return true
		}
	}
	return false
}

// checkValidator enforces that every bound name is a concrete field, a
// relation attribute or a relation's logical name.
func (m *Marshaller) checkValidator() error {
	v := m.validator
	if v == nil {
		return nil
	}
	if v.fn == nil {
		return configErr(m.model.Name, "validator function is nil")
	}
	allowed := make(map[string]struct{}, len(m.fields)*2)
	for _, info := range m.fields {
		allowed[info.Name] = struct{}{}
	}
	for _, field := range m.relFields {
		allowed[field.Name] = struct{}{}
	}

	var unknown []string
	needsStore := false
	for _, name := range v.fields {
		if _, ok := allowed[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		if m.relationByName(name) != nil {
			needsStore = true
		}
	}
	if len(unknown) > 0 {
		return configErr(m.model.Name, "validator arguments do not correspond to a field name", unknown...)
	}
	if needsStore && m.builder.opts.Store == nil {
		return configErr(m.model.Name, "validator resolves relations but no store is configured")
	}
	return nil
}

func (m *Marshaller) relationByName(name string) *schema.Field {
	for _, info := range m.fields {
		if info.Group == GroupRelation && info.Field.Name == name {
			return info.Field
		}
	}
	return nil
}

// runValidator resolves relations, backfills partial updates from the
// persisted instance and invokes the bound validator.
func (m *Marshaller) runValidator(ctx context.Context, attrs Record, opts decodeOptions) error {
	v := m.validator
	merged := make(map[string]any, len(attrs)+len(v.fields))
	for name, value := range attrs {
		merged[name] = value
	}

	for _, info := range m.fields {
		if info.Group != GroupRelation {
			continue
		}
		value, ok := attrs[info.Name]
		if !ok || value == nil || !v.wants(info.Field.Name) {
			continue
		}
		related, err := m.resolveRelation(ctx, info, value, opts.locale)
		if err != nil {
			return err
		}
		merged[info.Field.Name] = related
	}

	if opts.partial {
		for _, name := range v.fields {
			if _, ok := merged[name]; ok {
				continue
			}
			value, err := m.persistedValue(ctx, opts.instance, name, opts.locale)
			if err != nil {
				return err
			}
			merged[name] = value
		}
	}

	args := make(map[string]any, len(v.fields))
	for _, name := range v.fields {
		args[name] = merged[name]
	}
	return v.fn(ctx, args)
}

// resolveRelation loads the related record keyed by pk. Missing rows surface
// as a validation error on the relation attribute.
func (m *Marshaller) resolveRelation(ctx context.Context, info FieldInfo, pk any, locale string) (Record, error) {
	store := m.builder.opts.Store
	if store == nil {
		return nil, configErr(m.model.Name, "relation lookup requires a store")
	}
	record, err := store.Get(ctx, info.Field.RelatedModel, pk)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			verr := &ValidationError{}
			m.builder.localizer(locale).add(verr, info.Name, newMessage(MsgDoesNotExist, fmt.Sprint(pk)))
			return nil, verr
		}
		return nil, fmt.Errorf("marshal: resolve %s.%s: %w", m.model.Name, info.Field.Name, err)
	}
	return record, nil
}

func (m *Marshaller) persistedValue(ctx context.Context, instance Record, name, locale string) (any, error) {
	if instance == nil {
		return nil, nil
	}
	if value, ok := instance.Lookup(name); ok {
		return value, nil
	}
	for _, info := range m.fields {
		switch {
		case info.Group == GroupRelation && info.Field.Name == name:
			pk, ok := instance.Lookup(info.Name)
			if !ok || pk == nil {
				return nil, nil
			}
			return m.resolveRelation(ctx, info, pk, locale)
		case info.Name == name && info.Rule.Source != "":
			value, _ := instance.Lookup(info.Rule.Source)
			return value, nil
		}
	}
	return nil, nil
}
