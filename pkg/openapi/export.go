package openapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/modeltype"
	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Info describes the exported document.
type Info struct {
	Title       string
	Version     string
	Description string
	// Prefix is prepended to every path, defaulting to "/".
	Prefix string
}

// Option configures Export.
type Option func(*exporter)

// WithLogger routes export diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithoutValidation skips the final document validation.
func WithoutValidation() Option {
	return func(e *exporter) {
		e.validate = false
	}
}

type exporter struct {
	logger   *zap.Logger
	validate bool
	doc      *openapi3.T
	prefix   string
	owners   map[string]*marshal.Marshaller
}

// Export builds an OpenAPI document for every type of iface and validates
// it.
func Export(ctx context.Context, iface *modeltype.Interface, info Info, options ...Option) (*openapi3.T, error) {
	if iface == nil {
		return nil, errors.New("openapi: interface is required")
	}
	if info.Title == "" {
		info.Title = "modelgen"
	}
	if info.Version == "" {
		info.Version = "0.0.0"
	}
	e := &exporter{
		logger:   zap.NewNop(),
		validate: true,
		prefix:   "/" + strings.Trim(info.Prefix, "/"),
		owners:   map[string]*marshal.Marshaller{},
	}
	if e.prefix != "/" {
		e.prefix += "/"
	}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}

	e.doc = &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}

	for _, mt := range iface.ModelTypes() {
		if err := e.addModelType(mt); err != nil {
			return nil, err
		}
	}
	for _, ot := range iface.ObjectTypes() {
		if err := e.addObjectType(ot); err != nil {
			return nil, err
		}
	}

	if e.validate {
		if err := e.doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate export: %w", err)
		}
	}
	e.logger.Debug("openapi exported",
		zap.Int("paths", e.doc.Paths.Len()),
		zap.Int("schemas", len(e.doc.Components.Schemas)),
	)
	return e.doc, nil
}

// component registers m's schema under name. Registering the same
// marshaller twice reuses the component; a different one is an error.
func (e *exporter) component(name string, m *marshal.Marshaller) (*openapi3.SchemaRef, error) {
	if owner, taken := e.owners[name]; taken {
		if owner != m {
			return nil, fmt.Errorf("openapi: component %s is declared by two different shapes", name)
		}
		return componentRef(name, e.doc.Components.Schemas[name].Value), nil
	}
	object := ObjectSchema(m)
	e.owners[name] = m
	e.doc.Components.Schemas[name] = openapi3.NewSchemaRef("", object)
	return componentRef(name, object), nil
}

func (e *exporter) addModelType(mt *modeltype.ModelType) error {
	name := mt.TypeName()
	ref, err := e.component(name, mt.Marshaller())
	if err != nil {
		return err
	}
	for _, shape := range mt.Shapes() {
		shapeName := name + schema.PascalCase(shape.Name)
		if _, err := e.component(shapeName, shape.Marshaller); err != nil {
			return err
		}
	}

	base := e.prefix + mt.BasePath() + "/"
	tag := []string{name}
	pk := pkSchema(mt.Model())

	list := operation(name+"_list", "List "+name, tag)
	list.Responses = jsonResponses(http.StatusOK, nil, ref, true)
	create := operation(name+"_create", "Create "+name, tag)
	create.RequestBody = jsonBody(ref)
	create.Responses = jsonResponses(http.StatusCreated, nil, ref, false)
	e.doc.Paths.Set(base, &openapi3.PathItem{Get: list, Post: create})

	detailPath := base + "{pk}/"
	retrieve := operation(name+"_retrieve", "Retrieve "+name, tag)
	retrieve.Responses = jsonResponses(http.StatusOK, nil, ref, false)
	update := operation(name+"_update", "Update "+name, tag)
	update.RequestBody = jsonBody(ref)
	update.Responses = jsonResponses(http.StatusOK, nil, ref, false)
	partial := operation(name+"_partial_update", "Partially update "+name, tag)
	partial.RequestBody = jsonBody(ref)
	partial.Responses = jsonResponses(http.StatusOK, nil, ref, false)
	destroy := operation(name+"_destroy", "Delete "+name, tag)
	destroy.Responses = openapi3.NewResponses(openapi3.WithStatus(http.StatusNoContent, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("Deleted"),
	}))
	e.doc.Paths.Set(detailPath, &openapi3.PathItem{
		Parameters: openapi3.Parameters{&openapi3.ParameterRef{Value: openapi3.NewPathParameter("pk").WithSchema(pk)}},
		Get:        retrieve,
		Put:        update,
		Patch:      partial,
		Delete:     destroy,
	})

	return e.addMethods(&mt.ObjectType, base, detailPath, pk)
}

func (e *exporter) addObjectType(ot *modeltype.ObjectType) error {
	if m := ot.Marshaller(); m != nil {
		if _, err := e.component(ot.TypeName(), m); err != nil {
			return err
		}
	}
	return e.addMethods(ot, e.prefix+ot.BasePath()+"/", "", nil)
}

func (e *exporter) addMethods(ot *modeltype.ObjectType, base, detailPath string, pk *openapi3.Schema) error {
	for _, method := range ot.RemoteMethods() {
		op := operation(ot.TypeName()+"_"+schema.SnakeCase(method.Name), method.Description, []string{ot.TypeName()})
		if method.Args != nil {
			args, err := e.component(method.Args.Name(), method.Args)
			if err != nil {
				return fmt.Errorf("%w (%s.%s arguments)", err, ot.TypeName(), method.Name)
			}
			op.RequestBody = jsonBody(args)
		}
		if method.Returns != nil {
			result, err := e.component(method.Returns.Name(), method.Returns)
			if err != nil {
				return fmt.Errorf("%w (%s.%s result)", err, ot.TypeName(), method.Name)
			}
			op.Responses = jsonResponses(http.StatusOK, nil, result, false)
		} else {
			op.Responses = jsonResponses(http.StatusOK, openapi3.NewSchema(), nil, false)
		}

		item := &openapi3.PathItem{Post: op}
		path := base + method.Segment()
		if !method.Static && detailPath != "" {
			path = detailPath + method.Segment()
			item.Parameters = openapi3.Parameters{&openapi3.ParameterRef{Value: openapi3.NewPathParameter("pk").WithSchema(pk)}}
		}
		if e.doc.Paths.Value(path) != nil {
			return fmt.Errorf("openapi: duplicate path %s for %s.%s", path, ot.TypeName(), method.Name)
		}
		e.doc.Paths.Set(path, item)
	}
	return nil
}

func operation(id, summary string, tags []string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = tags
	return op
}

func jsonBody(ref *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref)}
}

// jsonResponses builds a single-status response set. A component ref wins
// over an inline schema; list wraps the ref in an array.
func jsonResponses(status int, inline *openapi3.Schema, ref *openapi3.SchemaRef, list bool) *openapi3.Responses {
	response := openapi3.NewResponse().WithDescription(http.StatusText(status))
	switch {
	case ref != nil && list:
		array := openapi3.NewArraySchema()
		array.Items = ref
		response.WithJSONSchema(array)
	case ref != nil:
		response.WithJSONSchemaRef(ref)
	case inline != nil:
		response.WithJSONSchema(inline)
	}
	return openapi3.NewResponses(openapi3.WithStatus(status, &openapi3.ResponseRef{Value: response}))
}

// pkSchema follows one-to-one primary keys down to the concrete key type.
func pkSchema(model *schema.Model) *openapi3.Schema {
	field := model.PK()
	seen := map[*schema.Field]bool{}
	for field != nil && field.IsOneToOne() && field.RelatedModel != nil && !seen[field] {
		seen[field] = true
		field = field.RelatedModel.PK()
	}
	if field != nil && marshal.StandardKind(field.Type) == marshal.KindInteger {
		return openapi3.NewIntegerSchema()
	}
	return openapi3.NewStringSchema()
}
