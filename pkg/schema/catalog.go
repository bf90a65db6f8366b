package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errModelNameMissing = errors.New("schema: model name is required")
	errFieldNameMissing = errors.New("schema: field name is required")
)

// Catalog holds the models known to a host and links relation references
// between them. It is built once and read-only afterwards.
type Catalog struct {
	models map[string]*Model
	order  []string
}

// NewCatalog adds the supplied models and links them.
func NewCatalog(models ...*Model) (*Catalog, error) {
	catalog := &Catalog{models: make(map[string]*Model, len(models))}
	for _, model := range models {
		if err := catalog.Add(model); err != nil {
			return nil, err
		}
	}
	if err := catalog.Link(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// MustCatalog panics when the catalog cannot be built. Useful for tests.
func MustCatalog(models ...*Model) *Catalog {
	catalog, err := NewCatalog(models...)
	if err != nil {
		panic(err)
	}
	return catalog
}

// Add registers a model. Duplicate names are rejected.
func (c *Catalog) Add(model *Model) error {
	if model == nil {
		return errors.New("schema: model is nil")
	}
	name := strings.TrimSpace(model.Name)
	if name == "" {
		return errModelNameMissing
	}
	if c.models == nil {
		c.models = make(map[string]*Model)
	}
	if _, exists := c.models[name]; exists {
		return fmt.Errorf("schema: duplicate model %q", name)
	}
	c.models[name] = model
	c.order = append(c.order, name)
	return nil
}

// Get returns the named model.
func (c *Catalog) Get(name string) (*Model, bool) {
	if c == nil {
		return nil, false
	}
	model, ok := c.models[name]
	return model, ok
}

// Models returns the registered models in registration order.
func (c *Catalog) Models() []*Model {
	if c == nil {
		return nil
	}
	out := make([]*Model, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.models[name])
	}
	return out
}

// Link assigns an implicit auto primary key to models that declare none,
// binds fields to their owning model and resolves relation targets.
func (c *Catalog) Link() error {
	for _, name := range c.order {
		model := c.models[name]
		if model.PK() == nil {
			model.Fields = append([]*Field{{Name: "id", Type: TypeAuto, PrimaryKey: true}}, model.Fields...)
		}
		if err := model.Bind(); err != nil {
			return err
		}
	}
	for _, name := range c.order {
		model := c.models[name]
		for _, field := range model.ForwardRelationFields() {
			if field.RelatedModel != nil {
				continue
			}
			target := strings.TrimSpace(field.Related)
			switch target {
			case "":
				return fmt.Errorf("schema: relation %s.%s has no related model", model.Name, field.Name)
			case "self":
				field.RelatedModel = model
			default:
				related, ok := c.models[target]
				if !ok {
					return fmt.Errorf("schema: relation %s.%s references unknown model %q", model.Name, field.Name, target)
				}
				field.RelatedModel = related
			}
		}
	}
	return nil
}

// Bind attaches every field to the model and rejects empty or duplicate
// field names. It does not touch relation targets.
func (m *Model) Bind() error {
	seen := make(map[string]struct{}, len(m.Fields))
	for _, field := range m.Fields {
		if field == nil || strings.TrimSpace(field.Name) == "" {
			return fmt.Errorf("%w (model %s)", errFieldNameMissing, m.Name)
		}
		if _, exists := seen[field.Name]; exists {
			return fmt.Errorf("schema: duplicate field %s.%s", m.Name, field.Name)
		}
		seen[field.Name] = struct{}{}
		field.owner = m
	}
	return nil
}
