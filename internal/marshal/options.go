package marshal

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Options configures a Builder. They are shared by every marshaller the
// builder produces, including nested prefetch marshallers.
type Options struct {
	// Types registers exact field types that bypass metadata inference.
	Types TypeTable
	// Store resolves relations and uniqueness during decode. Optional; when
	// nil, structural checks are skipped.
	Store Store
	// Logger receives build diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
	// Translator localizes validation messages. Optional; messages fall back
	// to their English defaults.
	Translator Translator
	// Locale is used when a Decode call does not pass WithLocale.
	Locale string
	// OnMissing picks the text for untranslated messages.
	OnMissing MissingTranslationHandler
}

func defaultOptions() Options {
	return Options{
		Types:  TypeTable{},
		Logger: zap.NewNop(),
	}
}

// Proxy flattens fields of a one-to-one related model onto the owner.
type Proxy struct {
	Relation string   `json:"relation"`
	Fields   []string `json:"fields"`
}

// Config is the per-model marshaller configuration.
type Config struct {
	Validator *Validator                 `json:"-"`
	Overrides map[string]schema.Override `json:"overrides,omitempty"`
	Proxies   []Proxy                    `json:"proxies,omitempty"`
	Computed  []string                   `json:"computed,omitempty"`
	// LenientOverrides ignores override keys that match no field instead of
	// failing the build.
	LenientOverrides bool `json:"lenientOverrides,omitempty"`
}
