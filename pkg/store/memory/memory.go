// Package memory implements an in-process row store keyed by model table.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Store keeps rows per table in insertion order.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]marshal.Record
}

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string][]marshal.Record)}
}

// Put inserts row, replacing any existing row with the same primary key.
func (s *Store) Put(model *schema.Model, row marshal.Record) error {
	pk := model.PK()
	if pk == nil {
		return fmt.Errorf("memory: model %s has no primary key", model.Name)
	}
	key, ok := row[pk.AttName()]
	if !ok || key == nil {
		return fmt.Errorf("memory: row for %s is missing %s", model.Name, pk.AttName())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	table := model.TableName()
	rows := s.tables[table]
	for i, existing := range rows {
		if equal(existing[pk.AttName()], key) {
			rows[i] = clone(row)
			return nil
		}
	}
	s.tables[table] = append(rows, clone(row))
	return nil
}

// Get returns a copy of the row keyed by pk.
func (s *Store) Get(_ context.Context, model *schema.Model, pk any) (marshal.Record, error) {
	field := model.PK()
	if field == nil {
		return nil, fmt.Errorf("memory: model %s has no primary key", model.Name)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.tables[model.TableName()] {
		if equal(row[field.AttName()], pk) {
			return clone(row), nil
		}
	}
	return nil, fmt.Errorf("memory: %s %v: %w", model.Name, pk, marshal.ErrNotFound)
}

// Exists reports whether another row already holds value in column.
func (s *Store) Exists(_ context.Context, model *schema.Model, column string, value any, exclude any) (bool, error) {
	var pkName string
	if field := model.PK(); field != nil {
		pkName = field.AttName()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.tables[model.TableName()] {
		if !equal(row[column], value) {
			continue
		}
		if exclude != nil && pkName != "" && equal(row[pkName], exclude) {
			continue
		}
		return true, nil
	}
	return false, nil
}

// Len returns the number of rows stored for model.
func (s *Store) Len(model *schema.Model) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[model.TableName()])
}

func clone(row marshal.Record) marshal.Record {
	out := make(marshal.Record, len(row))
	for key, value := range row {
		out[key] = value
	}
	return out
}

// equal compares keys loosely so int and int64 primary keys match.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
