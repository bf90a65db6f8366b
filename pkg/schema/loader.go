package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"
)

// Loader fetches manifest documents from files, fs.FS entries or HTTP.
// The implementation lives under internal/loader and is constructed through
// modelgen.NewLoader.
type Loader interface {
	Load(ctx context.Context, src Source) (Document, error)
}

// LoaderOptions configures how a Loader resolves sources.
type LoaderOptions struct {
	// FileSystem backs SourceFromFS lookups.
	FileSystem fs.FS

	// HTTPClient enables URL sources with custom transport settings.
	HTTPClient *http.Client

	// AllowHTTPFallback enables URL sources with a default client when no
	// HTTPClient is supplied.
	AllowHTTPFallback bool

	// RequestTimeout caps remote fetch durations.
	RequestTimeout time.Duration
}

// LoaderOption mutates LoaderOptions prior to construction.
type LoaderOption func(*LoaderOptions)

// WithFileSystem injects the fs.FS used for SourceFromFS entries.
func WithFileSystem(files fs.FS) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.FileSystem = files
	}
}

// WithHTTPClient injects a custom HTTP client for remote manifests.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.HTTPClient = client
	}
}

// WithHTTPFallback enables HTTP loading with a default client and an
// optional timeout.
func WithHTTPFallback(timeout time.Duration) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.AllowHTTPFallback = true
		opts.RequestTimeout = timeout
	}
}

// NewLoaderOptions applies a set of LoaderOption values.
func NewLoaderOptions(options ...LoaderOption) LoaderOptions {
	cfg := LoaderOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// LoadSources fetches every source through loader and merges them into one
// linked Manifest, in the order given.
func LoadSources(ctx context.Context, loader Loader, sources ...Source) (*Manifest, error) {
	if loader == nil {
		return nil, errors.New("schema: loader is required")
	}
	manifest := &Manifest{Catalog: &Catalog{}}
	for _, src := range sources {
		doc, err := loader.Load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("schema: load %s: %w", locationOf(src), err)
		}
		if err := manifest.add(doc); err != nil {
			return nil, err
		}
	}
	if err := manifest.Catalog.Link(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func locationOf(src Source) string {
	if src == nil {
		return "<nil>"
	}
	return src.Location()
}
