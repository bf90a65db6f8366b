package marshal

import (
	"context"
	"strings"

	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Record is the wire and instance representation handled by marshallers.
// Nested records (one-to-one proxies, prefetched relations) are stored as
// Record or map[string]any values.
type Record map[string]any

// Store is the slice of the host storage layer the marshaller relies on:
// relation lookup by key and uniqueness checks. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the row of model whose primary key equals pk, or an error
	// wrapping ErrNotFound.
	Get(ctx context.Context, model *schema.Model, pk any) (Record, error)
	// Exists reports whether a row other than the one keyed by exclude holds
	// value in column.
	Exists(ctx context.Context, model *schema.Model, column string, value any, exclude any) (bool, error)
}

// Lookup resolves a dotted path against the record.
func (r Record) Lookup(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	var current any = r
	for _, segment := range strings.Split(path, ".") {
		next, ok := asMap(current)
		if !ok {
			return nil, false
		}
		value, exists := next[segment]
		if !exists {
			return nil, false
		}
		current = value
	}
	return current, true
}

// Set stores value at a dotted path, creating intermediate records.
func (r Record) Set(path string, value any) {
	segments := strings.Split(path, ".")
	current := map[string]any(r)
	for _, segment := range segments[:len(segments)-1] {
		next, ok := asMap(current[segment])
		if !ok {
			child := Record{}
			current[segment] = child
			next = child
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case Record:
		return v, v != nil
	case map[string]any:
		return v, v != nil
	default:
		return nil, false
	}
}
