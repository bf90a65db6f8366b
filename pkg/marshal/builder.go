package marshal

import (
	"go.uber.org/zap"

	internal "github.com/goliatone/go-modelgen/internal/marshal"
)

// BuilderOption configures the builder behaviour.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	types      TypeTable
	store      Store
	logger     *zap.Logger
	translator Translator
	locale     string
	onMissing  MissingTranslationHandler
}

// WithTypeTable registers exact field types that bypass metadata inference.
func WithTypeTable(table TypeTable) BuilderOption {
	return func(opts *builderOptions) {
		opts.types = table
	}
}

// WithStore attaches the storage adapter used for relation lookups and
// uniqueness checks.
func WithStore(store Store) BuilderOption {
	return func(opts *builderOptions) {
		opts.store = store
	}
}

// WithLogger routes build diagnostics to logger.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(opts *builderOptions) {
		opts.logger = logger
	}
}

// WithTranslator localizes validation messages. locale is the default used
// when Decode is not given WithLocale.
func WithTranslator(t Translator, locale string) BuilderOption {
	return func(opts *builderOptions) {
		opts.translator = t
		opts.locale = locale
	}
}

// WithMissingTranslationHandler picks the text for untranslated messages.
func WithMissingTranslationHandler(handler MissingTranslationHandler) BuilderOption {
	return func(opts *builderOptions) {
		opts.onMissing = handler
	}
}

// NewBuilder returns a Builder backed by the internal implementation.
func NewBuilder(options ...BuilderOption) *Builder {
	return internal.New(internalOptions(options))
}

// NewCache returns a marshaller cache keyed by model and configuration.
func NewCache(options ...BuilderOption) *Cache {
	return internal.NewCache(NewBuilder(options...))
}

func internalOptions(options []BuilderOption) internal.Options {
	cfg := builderOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return internal.Options{
		Types:      cfg.types,
		Store:      cfg.store,
		Logger:     cfg.logger,
		Translator: cfg.translator,
		Locale:     cfg.locale,
		OnMissing:  cfg.onMissing,
	}
}
