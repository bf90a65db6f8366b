package transpile

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/modeltype"
	"github.com/goliatone/go-modelgen/pkg/projection"
	rendertemplate "github.com/goliatone/go-modelgen/pkg/render/template"
	"github.com/goliatone/go-modelgen/pkg/render/template/gotemplate"
	"github.com/goliatone/go-modelgen/pkg/schema"
)

const (
	objectTemplate    = "object_type"
	interfaceTemplate = "interface"
)

// Option configures a Transpiler.
type Option func(*config)

type config struct {
	templateFS fs.FS
	renderer   rendertemplate.TemplateRenderer
	projection []projection.Option
	logger     *zap.Logger
}

// WithTemplatesFS replaces the embedded template bundle.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path == "" {
			return
		}
		cfg.templateFS = os.DirFS(path)
	}
}

// WithTemplateRenderer injects a custom template renderer implementation.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.renderer = renderer
		}
	}
}

// WithProjectionOptions forwards options to the type projection.
func WithProjectionOptions(options ...projection.Option) Option {
	return func(cfg *config) {
		cfg.projection = append(cfg.projection, options...)
	}
}

// WithLogger sets the logger used for render diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Transpiler renders TypeScript artifacts.
type Transpiler struct {
	templates  rendertemplate.TemplateRenderer
	projection []projection.Option
	logger     *zap.Logger
}

// New constructs a Transpiler applying any provided options.
func New(options ...Option) (*Transpiler, error) {
	cfg := config{templateFS: TemplatesFS(), logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	renderer := cfg.renderer
	if renderer == nil {
		engine, err := gotemplate.New(gotemplate.WithFS(cfg.templateFS))
		if err != nil {
			return nil, fmt.Errorf("transpile: configure template renderer: %w", err)
		}
		renderer = engine
	}
	return &Transpiler{templates: renderer, projection: cfg.projection, logger: cfg.logger}, nil
}

type methodView struct {
	Name      string `json:"name"`
	Static    bool   `json:"static"`
	URL       string `json:"url"`
	Signature string `json:"signature"`
	Returns   string `json:"returns"`
	Doc       string `json:"doc,omitempty"`
}

type shapeView struct {
	Name         string   `json:"name"`
	Declarations []string `json:"declarations"`
}

type objectView struct {
	Name            string       `json:"name"`
	FieldsInterface string       `json:"fieldsInterface"`
	BasePath        string       `json:"basePath"`
	Doc             string       `json:"doc,omitempty"`
	Declarations    []string     `json:"declarations"`
	FieldNames      []string     `json:"fieldNames"`
	Methods         []methodView `json:"methods"`
	Shapes          []shapeView  `json:"shapes"`
}

// TranspileModelType renders the artifact for a registered model type.
// Instance method URLs embed the primary key of the receiving object.
func (t *Transpiler) TranspileModelType(mt *modeltype.ModelType) (string, error) {
	if mt == nil {
		return "", errors.New("transpile: model type is required")
	}
	view, err := t.objectView(&mt.ObjectType, mt.Model().Description, pkName(mt))
	if err != nil {
		return "", err
	}
	for _, shape := range mt.Shapes() {
		decls, err := projection.Project(shape.Marshaller, t.projection...)
		if err != nil {
			return "", fmt.Errorf("transpile: %s shape %s: %w", mt.TypeName(), shape.Name, err)
		}
		view.Shapes = append(view.Shapes, shapeView{
			Name:         mt.TypeName() + schema.PascalCase(shape.Name),
			Declarations: renderDeclarations(decls, nil, 1),
		})
	}
	return t.render(objectTemplate, view)
}

// TranspileObjectType renders the artifact for an object type.
func (t *Transpiler) TranspileObjectType(ot *modeltype.ObjectType) (string, error) {
	if ot == nil {
		return "", errors.New("transpile: object type is required")
	}
	view, err := t.objectView(ot, "", "")
	if err != nil {
		return "", err
	}
	return t.render(objectTemplate, view)
}

// TranspileInterface renders every model and object type of iface into one
// file.
func (t *Transpiler) TranspileInterface(iface *modeltype.Interface) (string, error) {
	if iface == nil {
		return "", errors.New("transpile: interface is required")
	}
	artifacts := make([]string, 0, len(iface.ModelTypes())+len(iface.ObjectTypes()))
	for _, mt := range iface.ModelTypes() {
		artifact, err := t.TranspileModelType(mt)
		if err != nil {
			return "", err
		}
		artifacts = append(artifacts, artifact)
	}
	for _, ot := range iface.ObjectTypes() {
		artifact, err := t.TranspileObjectType(ot)
		if err != nil {
			return "", err
		}
		artifacts = append(artifacts, artifact)
	}
	out, err := t.File(iface.Dest(), artifacts...)
	if err != nil {
		return "", err
	}
	t.logger.Debug("interface transpiled", zap.String("dest", iface.Dest()), zap.Int("types", len(artifacts)))
	return out, nil
}

// File wraps rendered artifacts with the shared file header.
func (t *Transpiler) File(dest string, artifacts ...string) (string, error) {
	return t.render(interfaceTemplate, map[string]any{
		"dest":      dest,
		"artifacts": artifacts,
	})
}

func (t *Transpiler) render(name string, data any) (string, error) {
	out, err := t.templates.RenderTemplate(name, data)
	if err != nil {
		return "", fmt.Errorf("transpile: render %s: %w", name, err)
	}
	return out, nil
}

func (t *Transpiler) objectView(ot *modeltype.ObjectType, description, pk string) (objectView, error) {
	view := objectView{
		Name:            ot.TypeName(),
		FieldsInterface: ot.TypeName() + "Fields",
		BasePath:        ot.BasePath() + "/",
		Doc:             docComment(description, 0),
		Declarations:    []string{},
		FieldNames:      []string{},
		Methods:         []methodView{},
		Shapes:          []shapeView{},
	}
	if m := ot.Marshaller(); m != nil {
		decls, err := projection.Project(m, t.projection...)
		if err != nil {
			return objectView{}, fmt.Errorf("transpile: %s: %w", ot.TypeName(), err)
		}
		view.Declarations = renderDeclarations(decls, descriptions(m), 1)
		for _, decl := range decls {
			view.FieldNames = append(view.FieldNames, decl.Name)
		}
	}

	methods, err := projection.Methods(ot, t.projection...)
	if err != nil {
		return objectView{}, fmt.Errorf("transpile: %s: %w", ot.TypeName(), err)
	}
	for _, method := range methods {
		view.Methods = append(view.Methods, methodView{
			Name:      method.Name,
			Static:    method.Static,
			URL:       methodURL(ot, method, pk),
			Signature: objectLiteral(method.Signature, 2),
			Returns:   returnType(method),
			Doc:       docComment(method.Description, 0),
		})
	}
	return view, nil
}

func methodURL(ot *modeltype.ObjectType, method projection.ObjectMethod, pk string) string {
	if method.Static || pk == "" {
		return quote(method.URL)
	}
	segment := strings.TrimPrefix(method.URL, ot.BasePath()+"/")
	return "`" + ot.BasePath() + "/${this." + pk + "}/" + segment + "`"
}

func returnType(method projection.ObjectMethod) string {
	if len(method.ReturnShape) > 0 {
		return objectLiteral(method.ReturnShape, 2)
	}
	return method.Returns
}

func pkName(mt *modeltype.ModelType) string {
	pk := mt.Model().PK()
	if pk == nil {
		return ""
	}
	if _, ok := mt.Marshaller().Field(pk.AttName()); !ok {
		return ""
	}
	return pk.AttName()
}

func descriptions(m *marshal.Marshaller) map[string]string {
	out := make(map[string]string)
	for _, info := range m.Fields() {
		if info.Field != nil && info.Field.Description != "" {
			out[info.Name] = info.Field.Description
		}
	}
	return out
}

// renderDeclarations formats one TypeScript property per declaration.
func renderDeclarations(decls []projection.TypeDeclaration, docs map[string]string, depth int) []string {
	indent := strings.Repeat("  ", depth)
	out := make([]string, 0, len(decls))
	for _, decl := range decls {
		var b strings.Builder
		if doc := docComment(docs[decl.Name], depth); doc != "" {
			b.WriteString(doc)
			b.WriteString("\n")
		}
		b.WriteString(indent)
		if decl.Readonly {
			b.WriteString("readonly ")
		}
		b.WriteString(propertyName(decl.Name))
		if decl.Optional {
			b.WriteString("?")
		}
		b.WriteString(": ")
		b.WriteString(tsType(decl, depth))
		if decl.Optional {
			b.WriteString(" | null")
		}
		b.WriteString(";")
		out = append(out, b.String())
	}
	return out
}

func tsType(decl projection.TypeDeclaration, depth int) string {
	if decl.Nested != nil {
		return objectLiteral(decl.Nested, depth+1)
	}
	return decl.Type
}

func objectLiteral(decls []projection.TypeDeclaration, depth int) string {
	if len(decls) == 0 {
		return "Record<string, never>"
	}
	lines := renderDeclarations(decls, nil, depth)
	return "{\n" + strings.Join(lines, "\n") + "\n" + strings.Repeat("  ", depth-1) + "}"
}

func propertyName(name string) string {
	if isIdentifier(name) {
		return name
	}
	return quote(name)
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func quote(value string) string {
	raw, _ := json.Marshal(value)
	return string(raw)
}

var (
	docPolicyOnce sync.Once
	docPolicy     *bluemonday.Policy
)

// docComment sanitizes free-form descriptions into a JSDoc block. Markup is
// stripped and comment terminators are neutralised.
func docComment(text string, depth int) string {
	docPolicyOnce.Do(func() {
		docPolicy = bluemonday.StrictPolicy()
	})
	cleaned := strings.TrimSpace(html.UnescapeString(docPolicy.Sanitize(text)))
	if cleaned == "" {
		return ""
	}
	cleaned = strings.ReplaceAll(cleaned, "*/", "*\\/")
	indent := strings.Repeat("  ", depth)
	lines := strings.Split(cleaned, "\n")
	if len(lines) == 1 {
		return indent + "/** " + lines[0] + " */"
	}
	var b strings.Builder
	b.WriteString(indent + "/**\n")
	for _, line := range lines {
		b.WriteString(strings.TrimRight(indent+" * "+strings.TrimSpace(line), " ") + "\n")
	}
	b.WriteString(indent + " */")
	return b.String()
}
