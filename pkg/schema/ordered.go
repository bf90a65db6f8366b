package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ProxySpec flattens fields of a forward relation onto the owning type.
type ProxySpec struct {
	Relation string   `json:"relation" yaml:"relation"`
	Fields   []string `json:"fields" yaml:"fields"`
}

// Proxies keeps proxy declarations in manifest order. Manifests write them
// as a mapping of relation name to field list.
type Proxies []ProxySpec

// UnmarshalYAML decodes the relation mapping in document order.
func (p *Proxies) UnmarshalYAML(node *yaml.Node) error {
	if isNullNode(node) {
		*p = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("schema: proxies must be a mapping (line %d)", node.Line)
	}
	out := make(Proxies, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		relation := node.Content[i].Value
		var fields []string
		if err := node.Content[i+1].Decode(&fields); err != nil {
			return fmt.Errorf("schema: proxies %s: %w", relation, err)
		}
		out = append(out, ProxySpec{Relation: relation, Fields: fields})
	}
	*p = out
	return nil
}

// UnmarshalJSON decodes the relation mapping in document order.
func (p *Proxies) UnmarshalJSON(data []byte) error {
	return unmarshalOrderedJSON(data, p)
}

// ShapeSpec is a named prefetch shape. Entries holds the raw prefetch list
// so nested mappings keep their declared order.
type ShapeSpec struct {
	Name    string
	Entries *yaml.Node
}

// Shapes keeps prefetch shape declarations in manifest order.
type Shapes []ShapeSpec

// Names returns the shape names in declaration order.
func (s Shapes) Names() []string {
	names := make([]string, 0, len(s))
	for _, shape := range s {
		names = append(names, shape.Name)
	}
	return names
}

// UnmarshalYAML decodes the shape mapping in document order.
func (s *Shapes) UnmarshalYAML(node *yaml.Node) error {
	if isNullNode(node) {
		*s = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("schema: prefetch must be a mapping of shape names (line %d)", node.Line)
	}
	out := make(Shapes, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, ShapeSpec{Name: node.Content[i].Value, Entries: node.Content[i+1]})
	}
	*s = out
	return nil
}

// UnmarshalJSON decodes the shape mapping in document order.
func (s *Shapes) UnmarshalJSON(data []byte) error {
	return unmarshalOrderedJSON(data, s)
}

// UnmarshalYAML reads a field declaration. A bare `null` key is the field's
// null flag, not a YAML null.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	type plain Field
	if node.Kind == yaml.MappingNode {
		node = nullKeysAsStrings(node)
	}
	return node.Decode((*plain)(f))
}

func nullKeysAsStrings(node *yaml.Node) *yaml.Node {
	out := *node
	out.Content = append([]*yaml.Node(nil), node.Content...)
	for i := 0; i+1 < len(out.Content); i += 2 {
		key := out.Content[i]
		if key.Kind == yaml.ScalarNode && key.Value != "" && key.ShortTag() == "!!null" {
			out.Content[i] = &yaml.Node{
				Kind:   yaml.ScalarNode,
				Tag:    "!!str",
				Value:  "null",
				Line:   key.Line,
				Column: key.Column,
			}
		}
	}
	return &out
}

// unmarshalOrderedJSON routes JSON through the YAML node decoder, which
// keeps object keys in document order.
func unmarshalOrderedJSON(data []byte, target yaml.Unmarshaler) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	return target.UnmarshalYAML(doc.Content[0])
}

func isNullNode(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null")
}
