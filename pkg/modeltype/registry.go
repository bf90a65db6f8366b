package modeltype

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/schema"
)

// ErrDuplicateType is returned when two registrations claim the same type name.
var ErrDuplicateType = errors.New("modeltype: duplicate type")

// Registry owns the marshaller cache and the registered model types. It is
// process-scoped state created explicitly by the host; there is no package
// level instance.
type Registry struct {
	cache   *marshal.Cache
	logger  *zap.Logger
	lenient bool

	mu     sync.RWMutex
	byKey  map[string]*ModelType
	byName map[string]*ModelType
	order  []string
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	builder []marshal.BuilderOption
	logger  *zap.Logger
	lenient bool
}

// WithBuilderOptions forwards options to the marshaller builder.
func WithBuilderOptions(options ...marshal.BuilderOption) Option {
	return func(o *registryOptions) {
		o.builder = append(o.builder, options...)
	}
}

// WithLogger sets the registry logger. It is also handed to the builder.
func WithLogger(logger *zap.Logger) Option {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithLenientOverrides makes manifest registrations ignore override keys
// that match no field.
func WithLenientOverrides() Option {
	return func(o *registryOptions) {
		o.lenient = true
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(options ...Option) *Registry {
	cfg := registryOptions{logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	builderOpts := append([]marshal.BuilderOption{marshal.WithLogger(cfg.logger)}, cfg.builder...)
	return &Registry{
		cache:   marshal.NewCache(builderOpts...),
		logger:  cfg.logger,
		lenient: cfg.lenient,
		byKey:   make(map[string]*ModelType),
		byName:  make(map[string]*ModelType),
	}
}

// RegisterOption customises a single registration.
type RegisterOption func(*registration)

type registration struct {
	basePath string
	methods  []RemoteMethod
	shapes   []shapeDecl
}

type shapeDecl struct {
	name  string
	trees []marshal.PrefetchTree
}

// WithBasePath overrides the snake_case default base path.
func WithBasePath(path string) RegisterOption {
	return func(r *registration) {
		r.basePath = path
	}
}

// WithMethods attaches remote methods to the type.
func WithMethods(methods ...RemoteMethod) RegisterOption {
	return func(r *registration) {
		r.methods = append(r.methods, methods...)
	}
}

// WithShape declares a named prefetch shape built at registration time.
// Shapes keep their declaration order.
func WithShape(name string, trees ...marshal.PrefetchTree) RegisterOption {
	return func(r *registration) {
		r.shapes = append(r.shapes, shapeDecl{name: name, trees: trees})
	}
}

// RegisterModel builds (or reuses) the marshaller for model and cfg and
// returns the type handle. Registering the same model and configuration
// again returns the existing handle.
func (r *Registry) RegisterModel(model *schema.Model, cfg marshal.Config, options ...RegisterOption) (*ModelType, error) {
	if model == nil {
		return nil, fmt.Errorf("modeltype: model is required")
	}
	reg := registration{}
	for _, opt := range options {
		if opt != nil {
			opt(&reg)
		}
	}

	key, err := registrationKey(model, cfg, reg)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	existing, ok := r.byKey[key]
	r.mu.RUnlock()
	if ok {
		return existing, nil
	}

	m, err := r.cache.Get(model, cfg)
	if err != nil {
		return nil, err
	}
	handle := &ModelType{
		ObjectType: *NewObjectType(model.Name, reg.basePath, m, reg.methods...),
		model:      model,
		config:     cfg,
		key:        key,
	}
	if handle, err = handle.withShapes(reg.shapes); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[key]; ok {
		return existing, nil
	}
	if _, taken := r.byName[model.Name]; taken {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateType, model.Name)
	}
	r.byKey[key] = handle
	r.byName[model.Name] = handle
	r.order = append(r.order, model.Name)

	r.logger.Info("model type registered",
		zap.String("model", model.Name),
		zap.String("basePath", handle.BasePath()),
		zap.Int("methods", len(handle.methods)),
		zap.Int("shapes", len(handle.shapes)),
	)
	return handle, nil
}

// RegisterSpec registers a manifest entry. Relations inside method
// arguments are resolved against catalog.
func (r *Registry) RegisterSpec(spec *schema.ModelSpec, catalog *schema.Catalog, validator *marshal.Validator) (*ModelType, error) {
	if spec == nil {
		return nil, fmt.Errorf("modeltype: spec is required")
	}
	cfg := ConfigFromSpec(spec)
	cfg.Validator = validator
	cfg.LenientOverrides = r.lenient

	methods := make([]RemoteMethod, 0, len(spec.Methods))
	for _, method := range spec.Methods {
		args, err := r.BuildArgs(spec.Name, method, catalog)
		if err != nil {
			return nil, err
		}
		methods = append(methods, RemoteMethod{
			Name:        method.Name,
			Path:        method.Path,
			Static:      method.Static,
			Description: method.Description,
			Args:        args,
		})
	}
	options := []RegisterOption{WithBasePath(spec.BasePath), WithMethods(methods...)}
	for _, shape := range spec.Prefetch {
		trees, err := marshal.ParsePrefetchYAML(shape.Entries)
		if err != nil {
			return nil, fmt.Errorf("modeltype: %s shape %q: %w", spec.Name, shape.Name, err)
		}
		options = append(options, WithShape(shape.Name, trees...))
	}
	return r.RegisterModel(&spec.Model, cfg, options...)
}

// RegisterManifest registers every spec of the manifest in order. Validators
// are looked up by model name.
func (r *Registry) RegisterManifest(manifest *schema.Manifest, validators map[string]*marshal.Validator) ([]*ModelType, error) {
	if manifest == nil {
		return nil, nil
	}
	out := make([]*ModelType, 0, len(manifest.Specs))
	for _, spec := range manifest.Specs {
		handle, err := r.RegisterSpec(spec, manifest.Catalog, validators[spec.Name])
		if err != nil {
			return nil, err
		}
		out = append(out, handle)
	}
	return out, nil
}

// BuildArgs builds the argument marshaller of a remote method. It returns
// nil when the method declares no arguments.
func (r *Registry) BuildArgs(typeName string, method schema.MethodSpec, catalog *schema.Catalog) (*marshal.Marshaller, error) {
	if len(method.Args) == 0 {
		return nil, nil
	}
	args := &schema.Model{
		Name:   typeName + schema.PascalCase(method.Name) + "Args",
		Fields: method.Args,
	}
	if err := args.Bind(); err != nil {
		return nil, err
	}
	for _, field := range args.ForwardRelationFields() {
		if field.RelatedModel != nil {
			continue
		}
		related, ok := catalog.Get(field.Related)
		if !ok {
			return nil, fmt.Errorf("modeltype: %s argument %s references unknown model %q", args.Name, field.Name, field.Related)
		}
		field.RelatedModel = related
	}
	return r.cache.Builder().Build(args, marshal.Config{})
}

// Lookup returns a registered type by name.
func (r *Registry) Lookup(name string) (*ModelType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byName[name]
	return handle, ok
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []*ModelType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ModelType, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns the registered type names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// ConfigFromSpec converts the manifest marshaller settings into a Config.
// Proxies keep their manifest order.
func ConfigFromSpec(spec *schema.ModelSpec) marshal.Config {
	cfg := marshal.Config{
		Overrides: spec.Overrides,
		Computed:  append([]string(nil), spec.Computed...),
	}
	for _, proxy := range spec.Proxies {
		cfg.Proxies = append(cfg.Proxies, marshal.Proxy{
			Relation: proxy.Relation,
			Fields:   append([]string(nil), proxy.Fields...),
		})
	}
	return cfg
}

func registrationKey(model *schema.Model, cfg marshal.Config, reg registration) (string, error) {
	key, err := marshal.Key(model, cfg)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(reg.methods))
	for _, method := range reg.methods {
		names = append(names, method.Name)
	}
	shapes := make([]string, 0, len(reg.shapes))
	for _, shape := range reg.shapes {
		shapes = append(shapes, shape.name)
	}
	return strings.Join([]string{
		key,
		normalizeBasePath(model.Name, reg.basePath),
		strings.Join(names, ","),
		strings.Join(shapes, ","),
	}, "|"), nil
}
