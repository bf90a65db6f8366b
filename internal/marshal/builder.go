package marshal

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Builder derives marshallers from model descriptors.
type Builder struct {
	opts Options
}

// New creates a Builder with the supplied options.
func New(options Options) *Builder {
	opts := defaultOptions()
	if options.Types != nil {
		opts.Types = options.Types.Clone()
	}
	if options.Store != nil {
		opts.Store = options.Store
	}
	if options.Logger != nil {
		opts.Logger = options.Logger
	}
	opts.Translator = options.Translator
	opts.Locale = strings.TrimSpace(options.Locale)
	opts.OnMissing = options.OnMissing
	return &Builder{opts: opts}
}

func (b *Builder) localizer(locale string) localizer {
	if locale == "" {
		locale = b.opts.Locale
	}
	return localizer{locale: locale, translator: b.opts.Translator, onMissing: b.opts.OnMissing}
}

// Build classifies the model's fields into concrete, proxy, relation and
// computed groups, attaches the bound validator and checks it against the
// resulting field names.
func (b *Builder) Build(model *schema.Model, cfg Config) (*Marshaller, error) {
	if model == nil {
		return nil, configErr("", "model is required")
	}
	m := &Marshaller{
		name:      model.Name,
		model:     model,
		builder:   b,
		index:     make(map[string]int),
		relFields: make(map[string]*schema.Field),
		validator: cfg.Validator,
	}
	if err := b.checkOverrides(model, cfg); err != nil {
		return nil, err
	}
	if err := b.buildConcreteFields(m, cfg); err != nil {
		return nil, err
	}
	if err := b.buildProxyFields(m, cfg); err != nil {
		return nil, err
	}
	if err := b.buildRelationFields(m, cfg); err != nil {
		return nil, err
	}
	b.buildComputedFields(m, cfg)
	if err := m.checkValidator(); err != nil {
		return nil, err
	}

	b.opts.Logger.Debug("marshaller built",
		zap.String("model", model.Name),
		zap.Int("fields", len(m.fields)),
		zap.Int("computed", len(m.computed)),
		zap.Bool("validator", m.validator != nil),
	)
	return m, nil
}

func (b *Builder) buildConcreteFields(m *Marshaller, cfg Config) error {
	for _, field := range m.model.ConcreteFields() {
		var rule Rule
		if kind, ok := b.opts.Types[field.Type]; ok {
			rule = Rule{Kind: kind, Required: !field.Null}
		} else {
			inferred, err := inferRule(m.model, field)
			if err != nil {
				return err
			}
			rule = inferred
		}
		rule, err := applyOverride(m.model, rule, cfg.Overrides, field.Name)
		if err != nil {
			return err
		}
		m.put(FieldInfo{Name: field.Name, Field: field, Rule: rule, Group: GroupConcrete})
	}
	return nil
}

func (b *Builder) buildProxyFields(m *Marshaller, cfg Config) error {
	for _, proxy := range cfg.Proxies {
		relation, ok := m.model.Field(proxy.Relation)
		if !ok || !relation.IsOneToOne() {
			return configErr(m.model.Name, "proxy source is not a one-to-one relation", proxy.Relation)
		}
		related := relation.RelatedModel
		if related == nil {
			return configErr(m.model.Name, "proxy relation is not linked", proxy.Relation)
		}
		for _, name := range proxy.Fields {
			remote, ok := related.Field(name)
			if !ok {
				return configErr(m.model.Name, "proxy field not found on "+related.Name, name)
			}
			rule, err := inferRule(related, remote)
			if err != nil {
				return err
			}
			rule, err = applyOverride(m.model, rule, cfg.Overrides, remote.Name)
			if err != nil {
				return err
			}
			rule.Source = relation.Name + "." + remote.Name
			if rule.Unique != nil {
				rule.Unique.Exclude = relation.AttName()
			}
			m.put(FieldInfo{Name: remote.Name, Field: remote, Rule: rule, Group: GroupProxy})
		}
	}
	return nil
}

func (b *Builder) buildRelationFields(m *Marshaller, cfg Config) error {
	for _, field := range m.model.ForwardRelationFields() {
		kind, err := relationKind(m.model, field, nil)
		if err != nil {
			return err
		}
		rule := Rule{
			Kind:      kind,
			Required:  !(field.HasDefault() || field.Blank || field.Null),
			AllowNull: field.Null,
		}
		if rule.Validators, err = parseValidators(m.model, field.Name, field.Validators); err != nil {
			return err
		}
		if field.Unique || field.IsOneToOne() {
			rule.Unique = &UniqueCheck{Model: m.model, Column: field.AttName(), Exclude: pkAttName(m.model)}
		}
		name := field.AttName()
		key := field.Name
		if _, ok := cfg.Overrides[key]; !ok {
			key = name
		}
		rule, err = applyOverride(m.model, rule, cfg.Overrides, key)
		if err != nil {
			return err
		}
		m.put(FieldInfo{Name: name, Field: field, Rule: rule, Group: GroupRelation})
		m.relFields[name] = field
	}
	return nil
}

func (b *Builder) buildComputedFields(m *Marshaller, cfg Config) {
	for _, name := range cfg.Computed {
		m.computed = append(m.computed, computedField(name))
	}
}

func computedField(name string) FieldInfo {
	return FieldInfo{Name: name, Rule: Rule{Kind: KindJSON, ReadOnly: true}, Group: GroupComputed}
}

// relationKind walks the related model's primary key chain until a scalar
// key type is found.
func relationKind(owner *schema.Model, field *schema.Field, seen map[*schema.Model]bool) (Kind, error) {
	related := field.RelatedModel
	if related == nil {
		return "", configErr(owner.Name, "relation is not linked to a model", field.Name)
	}
	if seen[related] {
		return "", configErr(owner.Name, "primary key chain is cyclic", field.Name)
	}
	pk := related.PK()
	if pk == nil {
		return "", configErr(owner.Name, "related model "+related.Name+" has no primary key", field.Name)
	}
	switch {
	case pk.IsAutoIncrement():
		return KindInteger, nil
	case pk.IsOneToOne():
		if seen == nil {
			seen = make(map[*schema.Model]bool)
		}
		seen[related] = true
		return relationKind(owner, pk, seen)
	default:
		return StandardKind(pk.Type), nil
	}
}

// inferRule derives a rule from field metadata: nullability, blank, default,
// length, choices, declared validators and uniqueness.
func inferRule(owner *schema.Model, field *schema.Field) (Rule, error) {
	kind := StandardKind(field.Type)
	if len(field.Choices) > 0 {
		kind = KindChoice
	}
	rule := Rule{Kind: kind}
	if field.IsAutoIncrement() || !field.IsEditable() {
		rule.ReadOnly = true
		return rule, nil
	}

	rule.Required = !(field.HasDefault() || field.Blank || field.Null)
	rule.AllowNull = field.Null
	rule.AllowBlank = field.Blank && rule.IsString()
	if rule.IsString() {
		rule.MaxLength = field.MaxLength
	}
	if kind == KindChoice {
		rule.Choices = append([]any(nil), field.Choices...)
	}

	validators, err := parseValidators(owner, field.Name, field.Validators)
	if err != nil {
		return Rule{}, err
	}
	rule.Validators = validators
	if field.Unique {
		rule.Unique = &UniqueCheck{Model: owner, Column: field.AttName(), Exclude: pkAttName(owner)}
	}
	return rule, nil
}

func parseValidators(owner *schema.Model, fieldName string, specs []string) ([]FieldValidator, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]FieldValidator, 0, len(specs))
	for _, spec := range specs {
		validator, err := parseValidator(spec)
		if err != nil {
			return nil, configErr(owner.Name, err.Error(), fieldName)
		}
		out = append(out, validator)
	}
	return out, nil
}

// applyOverride merges the override for name on top of the inferred rule.
func applyOverride(owner *schema.Model, rule Rule, overrides map[string]schema.Override, name string) (Rule, error) {
	override, ok := overrides[name]
	if !ok {
		return rule, nil
	}
	if override.Required != nil {
		rule.Required = *override.Required
	}
	if override.AllowNull != nil {
		rule.AllowNull = *override.AllowNull
	}
	if override.AllowBlank != nil {
		rule.AllowBlank = *override.AllowBlank
	}
	if override.ReadOnly != nil {
		rule.ReadOnly = *override.ReadOnly
	}
	if override.Source != "" {
		rule.Source = override.Source
	}
	if override.MaxLength != nil {
		rule.MaxLength = *override.MaxLength
	}
	if override.Validators != nil {
		validators, err := parseValidators(owner, name, override.Validators)
		if err != nil {
			return Rule{}, err
		}
		rule.Validators = validators
	}
	return rule, nil
}

func (b *Builder) checkOverrides(model *schema.Model, cfg Config) error {
	if cfg.LenientOverrides || len(cfg.Overrides) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(model.Fields))
	for _, field := range model.Fields {
		known[field.Name] = struct{}{}
		known[field.AttName()] = struct{}{}
	}
	for _, proxy := range cfg.Proxies {
		for _, name := range proxy.Fields {
			known[name] = struct{}{}
		}
	}
	var unknown []string
	for name := range cfg.Overrides {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return configErr(model.Name, "overrides reference unknown fields", unknown...)
}

func pkAttName(model *schema.Model) string {
	if pk := model.PK(); pk != nil {
		return pk.AttName()
	}
	return ""
}
