// Package modelgen infers serialization rules from backend model
// descriptors and projects them into TypeScript client modules and OpenAPI
// documents.
package modelgen

import (
	"context"
	"io/fs"

	"github.com/goliatone/go-modelgen/internal/loader"
	"github.com/goliatone/go-modelgen/pkg/modeltype"
	"github.com/goliatone/go-modelgen/pkg/orchestrator"
	"github.com/goliatone/go-modelgen/pkg/schema"
	"github.com/goliatone/go-modelgen/pkg/transpile"
)

// Request aliases orchestrator.Request for callers using the root package.
type Request = orchestrator.Request

// Result aliases orchestrator.Result.
type Result = orchestrator.Result

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// NewLoader constructs a manifest loader backed by the internal
// implementation while keeping the concrete type hidden from consumers.
func NewLoader(options ...schema.LoaderOption) schema.Loader {
	return loader.New(schema.NewLoaderOptions(options...))
}

// NewRegistry returns an empty model type registry.
func NewRegistry(options ...modeltype.Option) *modeltype.Registry {
	return modeltype.NewRegistry(options...)
}

// Generate loads every manifest under manifests and renders the client
// module named dest. It is the simplest entry point for callers that only
// need the TypeScript source.
func Generate(ctx context.Context, manifests fs.FS, dest string, options ...orchestrator.Option) (string, error) {
	result, err := orchestrator.New(options...).Generate(ctx, orchestrator.Request{
		Manifests: manifests,
		Dest:      dest,
	})
	if err != nil {
		return "", err
	}
	return result.TypeScript, nil
}

// EmbeddedTemplates exposes the built-in client templates so callers can copy
// or extend them.
func EmbeddedTemplates() fs.FS {
	return transpile.TemplatesFS()
}
