package orchestrator

import (
	"context"

	"github.com/goliatone/go-modelgen/pkg/modeltype"
)

// Transformer adjusts the assembled interface before it is rendered, e.g. to
// attach hand-written object types.
type Transformer interface {
	Transform(ctx context.Context, iface *modeltype.Interface) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, iface *modeltype.Interface) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, iface *modeltype.Interface) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, iface)
}
