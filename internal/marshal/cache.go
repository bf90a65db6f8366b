package marshal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Cache memoises marshallers by a value key derived from the model identity
// and its configuration.
type Cache struct {
	builder *Builder

	mu      sync.RWMutex
	entries map[string]*Marshaller
}

// NewCache creates an empty cache backed by builder.
func NewCache(builder *Builder) *Cache {
	if builder == nil {
		builder = New(Options{})
	}
	return &Cache{
		builder: builder,
		entries: make(map[string]*Marshaller),
	}
}

// Builder returns the builder used for cache misses.
func (c *Cache) Builder() *Builder {
	return c.builder
}

// Get returns the cached marshaller for (model, cfg), building it on miss.
func (c *Cache) Get(model *schema.Model, cfg Config) (*Marshaller, error) {
	key, err := Key(model, cfg)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	built, err := c.builder.Build(model, cfg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = built
	c.builder.opts.Logger.Debug("marshaller cached", zap.String("model", model.Name), zap.String("key", key[:12]))
	return built, nil
}

// Len reports the number of cached marshallers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key derives the cache key for a model configuration. Validators are keyed
// by identity since functions cannot be compared by value.
func Key(model *schema.Model, cfg Config) (string, error) {
	if model == nil {
		return "", configErr("", "model is required")
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal: hash config for %s: %w", model.Name, err)
	}
	sum := sha256.New()
	fmt.Fprintf(sum, "%s|%p|%p|", model.Name, model, cfg.Validator)
	sum.Write(payload)
	return hex.EncodeToString(sum.Sum(nil)), nil
}
