package projection

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/schema"
)

// RemoteMethod is a callable exposed on an object type. Args and Returns are
// optional; a nil Args marshaller means the method takes no arguments.
type RemoteMethod struct {
	Name        string
	Path        string
	Static      bool
	Description string
	Args        *marshal.Marshaller
	Returns     *marshal.Marshaller
}

// Segment returns the method's own path segment, defaulting to the snake_case
// name followed by a slash.
func (m RemoteMethod) Segment() string {
	path := strings.Trim(m.Path, "/")
	if path == "" {
		path = schema.SnakeCase(m.Name)
	}
	return path + "/"
}

// ObjectType is anything exposing remote methods under a base path.
type ObjectType interface {
	TypeName() string
	BasePath() string
	RemoteMethods() []RemoteMethod
}

// ObjectMethod is the projected call signature of a remote method.
type ObjectMethod struct {
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Static      bool              `json:"static,omitempty"`
	Description string            `json:"description,omitempty"`
	Signature   []TypeDeclaration `json:"signature"`
	Returns     string            `json:"returns"`
	ReturnShape []TypeDeclaration `json:"returnShape,omitempty"`
}

// Methods projects every remote method of obj in declaration order. URLs
// join the object's base path with the method segment.
func Methods(obj ObjectType, opts ...Option) ([]ObjectMethod, error) {
	if obj == nil {
		return nil, fmt.Errorf("projection: object type is required")
	}
	o := newOptions(opts)
	prefix := strings.Trim(obj.BasePath(), "/") + "/"

	remote := obj.RemoteMethods()
	out := make([]ObjectMethod, 0, len(remote))
	for _, method := range remote {
		projected := ObjectMethod{
			Name:        method.Name,
			URL:         prefix + method.Segment(),
			Static:      method.Static,
			Description: method.Description,
			Returns:     TypeAny,
		}
		if method.Args != nil {
			sig, err := project(method.Args, o)
			if err != nil {
				return nil, fmt.Errorf("projection: %s.%s arguments: %w", obj.TypeName(), method.Name, err)
			}
			projected.Signature = sig
		}
		if method.Returns != nil {
			shape, err := project(method.Returns, o)
			if err != nil {
				return nil, fmt.Errorf("projection: %s.%s result: %w", obj.TypeName(), method.Name, err)
			}
			projected.Returns = method.Returns.Name()
			projected.ReturnShape = shape
		}
		if projected.Signature == nil {
			projected.Signature = []TypeDeclaration{}
		}
		out = append(out, projected)
	}
	return out, nil
}
