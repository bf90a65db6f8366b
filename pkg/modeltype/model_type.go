package modeltype

import (
	"fmt"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Shape is a named prefetch expansion of a model type.
type Shape struct {
	Name       string
	Marshaller *marshal.Marshaller
}

// ModelType is the handle returned by Registry.RegisterModel. It is
// immutable and safe to share.
type ModelType struct {
	ObjectType
	model  *schema.Model
	config marshal.Config
	key    string
	shapes []Shape
}

// Model returns the descriptor the type was registered with.
func (t *ModelType) Model() *schema.Model {
	return t.model
}

// Config returns the marshaller configuration the type was registered with.
func (t *ModelType) Config() marshal.Config {
	return t.config
}

// Key is the value key identifying the registration.
func (t *ModelType) Key() string {
	return t.key
}

// Shapes returns the named prefetch shapes in declaration order.
func (t *ModelType) Shapes() []Shape {
	return append([]Shape(nil), t.shapes...)
}

// Prefetch builds an uncached nested shape for a single request.
func (t *ModelType) Prefetch(trees ...marshal.PrefetchTree) (*marshal.Marshaller, error) {
	return t.marshaller.Expand(trees...)
}

func (t *ModelType) withShapes(shapes []shapeDecl) (*ModelType, error) {
	if len(shapes) == 0 {
		return t, nil
	}
	out := *t
	out.shapes = make([]Shape, 0, len(shapes))
	seen := make(map[string]bool, len(shapes))
	for _, shape := range shapes {
		if seen[shape.name] {
			return nil, fmt.Errorf("modeltype: %s declares shape %q twice", t.name, shape.name)
		}
		seen[shape.name] = true
		expanded, err := t.marshaller.Expand(shape.trees...)
		if err != nil {
			return nil, fmt.Errorf("modeltype: %s shape %q: %w", t.name, shape.name, err)
		}
		out.shapes = append(out.shapes, Shape{Name: shape.name, Marshaller: expanded})
	}
	return &out, nil
}
