package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/modeltype"
	"github.com/goliatone/go-modelgen/pkg/openapi"
	"github.com/goliatone/go-modelgen/pkg/schema"
	"github.com/goliatone/go-modelgen/pkg/transpile"
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithRegistry injects a model type registry. Types already registered stay
// available to later requests.
func WithRegistry(registry *modeltype.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithRegistryOptions configures the default registry.
func WithRegistryOptions(options ...modeltype.Option) Option {
	return func(o *Orchestrator) {
		o.registryOptions = append(o.registryOptions, options...)
	}
}

// WithTranspiler injects a TypeScript transpiler.
func WithTranspiler(transpiler *transpile.Transpiler) Option {
	return func(o *Orchestrator) {
		o.transpiler = transpiler
	}
}

// WithTranspileOptions configures the default transpiler.
func WithTranspileOptions(options ...transpile.Option) Option {
	return func(o *Orchestrator) {
		o.transpileOptions = append(o.transpileOptions, options...)
	}
}

// WithValidators binds cross-field validators to models by name.
func WithValidators(validators map[string]*marshal.Validator) Option {
	return func(o *Orchestrator) {
		for name, validator := range validators {
			o.validators[name] = validator
		}
	}
}

// WithObjectTypes adds hand-declared object types to every generated
// interface.
func WithObjectTypes(types ...*modeltype.ObjectType) Option {
	return func(o *Orchestrator) {
		o.objectTypes = append(o.objectTypes, types...)
	}
}

// WithTransformer registers a hook that runs on the assembled interface
// before rendering.
func WithTransformer(t Transformer) Option {
	return func(o *Orchestrator) {
		o.transformer = t
	}
}

// WithLogger routes pipeline diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator coordinates manifest loading, type registration and client
// generation. Missing dependencies are initialised with the built-in
// implementations.
type Orchestrator struct {
	registry         *modeltype.Registry
	registryOptions  []modeltype.Option
	transpiler       *transpile.Transpiler
	transpileOptions []transpile.Option
	validators       map[string]*marshal.Validator
	objectTypes      []*modeltype.ObjectType
	transformer      Transformer
	logger           *zap.Logger
	initialiseErr    error
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		validators: make(map[string]*marshal.Validator),
		logger:     zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

// Registry returns the registry types are registered in.
func (o *Orchestrator) Registry() *modeltype.Registry {
	return o.registry
}

// Request describes one generation run.
type Request struct {
	// Manifests holds *.yaml / *.json model manifests. Optional when Manifest
	// is supplied.
	Manifests fs.FS

	// Manifest bypasses loading when the caller already parsed one.
	Manifest *schema.Manifest

	// Dest names the generated client module.
	Dest string

	// Models restricts the interface to the named types. Empty selects every
	// type declared by the manifest.
	Models []string

	// OpenAPI requests an OpenAPI export alongside the client when non-nil.
	OpenAPI *openapi.Info
}

// Result carries the generation artifacts.
type Result struct {
	Interface  *modeltype.Interface
	TypeScript string
	OpenAPI    *openapi3.T
}

// Generate executes the load → register → assemble → transpile sequence.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.initialiseErr; err != nil {
		return nil, err
	}

	manifest, err := o.resolveManifest(req)
	if err != nil {
		return nil, err
	}

	types, err := o.registry.RegisterManifest(manifest, o.validators)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: register manifest: %w", err)
	}
	selected, err := selectTypes(types, req.Models)
	if err != nil {
		return nil, err
	}

	iface, err := modeltype.NewInterface(req.Dest)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	iface.AddModelType(selected...)
	iface.AddObjectType(o.objectTypes...)

	if o.transformer != nil {
		if err := o.transformer.Transform(ctx, iface); err != nil {
			return nil, fmt.Errorf("orchestrator: transform interface: %w", err)
		}
	}

	source, err := o.transpiler.TranspileInterface(iface)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: transpile: %w", err)
	}
	result := &Result{Interface: iface, TypeScript: source}

	if req.OpenAPI != nil {
		doc, err := openapi.Export(ctx, iface, *req.OpenAPI, openapi.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		result.OpenAPI = doc
	}

	o.logger.Info("interface generated",
		zap.String("dest", req.Dest),
		zap.Int("model_types", len(iface.ModelTypes())),
		zap.Int("object_types", len(iface.ObjectTypes())),
		zap.Bool("openapi", result.OpenAPI != nil),
	)
	return result, nil
}

func (o *Orchestrator) resolveManifest(req Request) (*schema.Manifest, error) {
	if req.Manifest != nil {
		return req.Manifest, nil
	}
	if req.Manifests == nil {
		return nil, errors.New("orchestrator: manifests or manifest is required")
	}
	manifest, err := schema.LoadFS(req.Manifests)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load manifests: %w", err)
	}
	return manifest, nil
}

func selectTypes(types []*modeltype.ModelType, names []string) ([]*modeltype.ModelType, error) {
	if len(names) == 0 {
		return types, nil
	}
	byName := make(map[string]*modeltype.ModelType, len(types))
	for _, mt := range types {
		byName[mt.TypeName()] = mt
	}
	out := make([]*modeltype.ModelType, 0, len(names))
	var missing []string
	for _, name := range names {
		mt, ok := byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out = append(out, mt)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("orchestrator: unknown model types %v", missing)
	}
	return out, nil
}

func (o *Orchestrator) applyDefaults() {
	if o.registry == nil {
		options := append([]modeltype.Option{modeltype.WithLogger(o.logger)}, o.registryOptions...)
		o.registry = modeltype.NewRegistry(options...)
	}
	if o.transpiler == nil {
		options := append([]transpile.Option{transpile.WithLogger(o.logger)}, o.transpileOptions...)
		transpiler, err := transpile.New(options...)
		if err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default transpiler: %w", err)
			return
		}
		o.transpiler = transpiler
	}
}
