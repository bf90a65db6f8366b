// Package store holds the storage backends marshallers use for relation
// lookups and uniqueness checks. memory keeps rows in process; gormstore
// queries a relational database through gorm.
package store

import "github.com/goliatone/go-modelgen/pkg/marshal"

// Store is the contract every backend satisfies.
type Store = marshal.Store
