package marshal

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-modelgen/pkg/schema"
)

// PrefetchKind tags the variant held by a PrefetchTree.
type PrefetchKind int

const (
	// PrefetchField names a single relation or computed field.
	PrefetchField PrefetchKind = iota
	// PrefetchSiblings lists relation or computed fields at one level.
	PrefetchSiblings
	// PrefetchNested maps relation names to deeper trees.
	PrefetchNested
)

func (k PrefetchKind) String() string {
	switch k {
	case PrefetchField:
		return "field"
	case PrefetchSiblings:
		return "siblings"
	case PrefetchNested:
		return "nested"
	default:
		return fmt.Sprintf("PrefetchKind(%d)", int(k))
	}
}

// PrefetchTree describes which related shapes to embed and how deep.
type PrefetchTree struct {
	Kind     PrefetchKind
	Name     string
	Names    []string
	Branches []PrefetchBranch
}

// PrefetchBranch expands Field one level deeper using Tree.
type PrefetchBranch struct {
	Field string
	Tree  PrefetchTree
}

// PrefetchOne builds a single-field tree.
func PrefetchOne(name string) PrefetchTree {
	return PrefetchTree{Kind: PrefetchField, Name: name}
}

// PrefetchList builds a sibling tree.
func PrefetchList(names ...string) PrefetchTree {
	return PrefetchTree{Kind: PrefetchSiblings, Names: append([]string(nil), names...)}
}

// PrefetchMap builds a nested tree from branches, kept in the given order.
func PrefetchMap(branches ...PrefetchBranch) PrefetchTree {
	return PrefetchTree{Kind: PrefetchNested, Branches: append([]PrefetchBranch(nil), branches...)}
}

// Branch pairs a relation name with the tree expanded beneath it.
func Branch(field string, tree PrefetchTree) PrefetchBranch {
	return PrefetchBranch{Field: field, Tree: tree}
}

// ParsePrefetch converts decoded JSON-like data into a tree. Strings become
// fields, string lists become siblings and maps become nested branches.
// Go maps carry no order, so map keys are visited sorted; use
// ParsePrefetchYAML when the declared order matters.
func ParsePrefetch(value any) (PrefetchTree, error) {
	switch v := value.(type) {
	case string:
		return PrefetchOne(v), nil
	case []string:
		return PrefetchList(v...), nil
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return PrefetchTree{}, fmt.Errorf("marshal: prefetch list entries must be strings, got %T", item)
			}
			names = append(names, name)
		}
		return PrefetchList(names...), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		branches := make([]PrefetchBranch, 0, len(keys))
		for _, key := range keys {
			tree, err := ParsePrefetch(v[key])
			if err != nil {
				return PrefetchTree{}, err
			}
			branches = append(branches, Branch(key, tree))
		}
		return PrefetchMap(branches...), nil
	default:
		return PrefetchTree{}, fmt.Errorf("marshal: unsupported prefetch value %T", value)
	}
}

// ParsePrefetchSpecs parses a top-level list of prefetch entries.
func ParsePrefetchSpecs(values []any) ([]PrefetchTree, error) {
	trees := make([]PrefetchTree, 0, len(values))
	for i, value := range values {
		tree, err := ParsePrefetch(value)
		if err != nil {
			return nil, fmt.Errorf("marshal: prefetch entry %d: %w", i, err)
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

// ParsePrefetchYAML parses a YAML sequence of prefetch entries keeping
// mapping keys in document order.
func ParsePrefetchYAML(node *yaml.Node) ([]PrefetchTree, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.SequenceNode {
		tree, err := parsePrefetchNode(node)
		if err != nil {
			return nil, err
		}
		return []PrefetchTree{tree}, nil
	}
	trees := make([]PrefetchTree, 0, len(node.Content))
	for _, child := range node.Content {
		tree, err := parsePrefetchNode(child)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

func parsePrefetchNode(node *yaml.Node) (PrefetchTree, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return PrefetchOne(node.Value), nil
	case yaml.SequenceNode:
		names := make([]string, 0, len(node.Content))
		for _, child := range node.Content {
			if child.Kind != yaml.ScalarNode {
				return PrefetchTree{}, fmt.Errorf("marshal: prefetch list entries must be strings (line %d)", child.Line)
			}
			names = append(names, child.Value)
		}
		return PrefetchList(names...), nil
	case yaml.MappingNode:
		branches := make([]PrefetchBranch, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			tree, err := parsePrefetchNode(node.Content[i+1])
			if err != nil {
				return PrefetchTree{}, err
			}
			branches = append(branches, Branch(node.Content[i].Value, tree))
		}
		return PrefetchMap(branches...), nil
	default:
		return PrefetchTree{}, fmt.Errorf("marshal: unsupported prefetch node (line %d)", node.Line)
	}
}

// Expand returns a marshaller whose field set is the base set plus one field
// per prefetch entry. Entries apply in order and a later entry replaces an
// earlier one with the same name. Nested marshallers are built with the
// default configuration and are not cached.
func (m *Marshaller) Expand(trees ...PrefetchTree) (*Marshaller, error) {
	out := m.clone()
	out.name = m.model.Name + "Prefetch"
	out.validator = nil
	for _, tree := range trees {
		if err := out.expandTree(tree); err != nil {
			return nil, err
		}
	}
	m.builder.opts.Logger.Debug("prefetch expanded",
		zap.String("model", m.model.Name),
		zap.Strings("fields", out.FieldNames()),
	)
	return out, nil
}

func (m *Marshaller) expandTree(tree PrefetchTree) error {
	switch tree.Kind {
	case PrefetchField:
		return m.expandField(tree.Name)
	case PrefetchSiblings:
		for _, name := range tree.Names {
			if err := m.expandField(name); err != nil {
				return err
			}
		}
		return nil
	case PrefetchNested:
		for _, branch := range tree.Branches {
			if err := m.expandBranch(branch); err != nil {
				return err
			}
		}
		return nil
	default:
		return configErr(m.model.Name, "unknown prefetch kind "+tree.Kind.String())
	}
}

// expandField embeds the related shape for a relation name. Names that are
// not model fields become opaque computed fields; plain model fields keep
// their base rule.
func (m *Marshaller) expandField(name string) error {
	field, ok := m.model.Field(name)
	if !ok {
		for _, computed := range m.computed {
			if computed.Name == name {
				m.put(computed)
				return nil
			}
		}
		m.put(computedField(name))
		return nil
	}
	if !field.IsRelation() {
		return nil
	}
	nested, err := m.builder.Build(field.RelatedModel, Config{})
	if err != nil {
		return err
	}
	m.putNested(field, nested)
	return nil
}

func (m *Marshaller) expandBranch(branch PrefetchBranch) error {
	field, ok := m.model.Field(branch.Field)
	if !ok || !field.IsRelation() {
		return configErr(m.model.Name, "nested prefetch key is not a relation", branch.Field)
	}
	base, err := m.builder.Build(field.RelatedModel, Config{})
	if err != nil {
		return err
	}
	nested, err := base.Expand(branch.Tree)
	if err != nil {
		return err
	}
	m.putNested(field, nested)
	return nil
}

func (m *Marshaller) putNested(field *schema.Field, nested *Marshaller) {
	m.put(FieldInfo{
		Name:  field.Name,
		Field: field,
		Rule: Rule{
			Kind:      KindNested,
			ReadOnly:  true,
			AllowNull: field.Null,
			Nested:    nested,
		},
		Group: GroupPrefetch,
	})
}
