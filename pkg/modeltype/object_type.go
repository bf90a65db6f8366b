package modeltype

import (
	"strings"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/projection"
	"github.com/goliatone/go-modelgen/pkg/schema"
)

// RemoteMethod is a callable exposed on a type.
type RemoteMethod = projection.RemoteMethod

// ObjectType is a named shape with remote methods and no backing model
// collection. Model types build on it.
type ObjectType struct {
	name       string
	basePath   string
	marshaller *marshal.Marshaller
	methods    []RemoteMethod
}

// NewObjectType creates an object type. The marshaller is optional and
// describes the fields of the type; an empty base path defaults to the
// snake_case name.
func NewObjectType(name, basePath string, marshaller *marshal.Marshaller, methods ...RemoteMethod) *ObjectType {
	return &ObjectType{
		name:       name,
		basePath:   normalizeBasePath(name, basePath),
		marshaller: marshaller,
		methods:    append([]RemoteMethod(nil), methods...),
	}
}

// TypeName is the emitted type name.
func (o *ObjectType) TypeName() string {
	return o.name
}

// BasePath is the path segment the type is mounted under, without slashes.
func (o *ObjectType) BasePath() string {
	return o.basePath
}

// Marshaller returns the marshaller describing the type's fields.
func (o *ObjectType) Marshaller() *marshal.Marshaller {
	return o.marshaller
}

// RemoteMethods returns instance and static methods in declaration order.
func (o *ObjectType) RemoteMethods() []RemoteMethod {
	return append([]RemoteMethod(nil), o.methods...)
}

// InstanceMethods returns the non-static methods.
func (o *ObjectType) InstanceMethods() []RemoteMethod {
	return o.filter(false)
}

// StaticMethods returns the static methods.
func (o *ObjectType) StaticMethods() []RemoteMethod {
	return o.filter(true)
}

func (o *ObjectType) filter(static bool) []RemoteMethod {
	var out []RemoteMethod
	for _, method := range o.methods {
		if method.Static == static {
			out = append(out, method)
		}
	}
	return out
}

func normalizeBasePath(name, basePath string) string {
	basePath = strings.Trim(strings.TrimSpace(basePath), "/")
	if basePath == "" {
		return schema.SnakeCase(name)
	}
	return basePath
}
