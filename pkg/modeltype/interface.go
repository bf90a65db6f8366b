package modeltype

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingDest is returned when an interface is declared without a
// transpile destination.
var ErrMissingDest = errors.New("modeltype: interface destination is required")

// RouteKind classifies the sub-paths exposed for a type.
type RouteKind string

const (
	RouteCollection     RouteKind = "collection"
	RouteDetail         RouteKind = "detail"
	RouteInstanceMethod RouteKind = "instance_method"
	RouteStaticMethod   RouteKind = "static_method"
)

// PKPlaceholder stands for the primary key segment in route paths.
const PKPlaceholder = "<pk>"

// Route is a path string the routing layer mounts. Path is relative to the
// interface root and always ends with a slash.
type Route struct {
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	Kind   RouteKind `json:"kind"`
	Path   string    `json:"path"`
	Method string    `json:"method,omitempty"`
}

// Interface groups model and object types transpiled into one destination.
type Interface struct {
	dest    string
	models  []*ModelType
	objects []*ObjectType
}

// NewInterface creates an interface writing to dest.
func NewInterface(dest string) (*Interface, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return nil, ErrMissingDest
	}
	return &Interface{dest: dest}, nil
}

// Dest is the transpile destination path.
func (i *Interface) Dest() string {
	return i.dest
}

// AddModelType appends model types in order.
func (i *Interface) AddModelType(types ...*ModelType) *Interface {
	for _, t := range types {
		if t != nil {
			i.models = append(i.models, t)
		}
	}
	return i
}

// AddObjectType appends object types in order.
func (i *Interface) AddObjectType(types ...*ObjectType) *Interface {
	for _, t := range types {
		if t != nil {
			i.objects = append(i.objects, t)
		}
	}
	return i
}

// ModelTypes returns the model types in declaration order.
func (i *Interface) ModelTypes() []*ModelType {
	return append([]*ModelType(nil), i.models...)
}

// ObjectTypes returns the object types in declaration order.
func (i *Interface) ObjectTypes() []*ObjectType {
	return append([]*ObjectType(nil), i.objects...)
}

// Routes lists the base paths and sub-paths of every type: collection and
// detail routes plus one route per remote method for model types, and one
// route per method for object types.
func (i *Interface) Routes() []Route {
	var routes []Route
	for _, t := range i.models {
		base := t.BasePath() + "/"
		name := t.BasePath()
		routes = append(routes,
			Route{Type: t.TypeName(), Name: name + "-list", Kind: RouteCollection, Path: base},
			Route{Type: t.TypeName(), Name: name + "-detail", Kind: RouteDetail, Path: base + PKPlaceholder + "/"},
		)
		for _, method := range t.methods {
			route := Route{Type: t.TypeName(), Method: method.Name, Name: fmt.Sprintf("%s-%s", name, strings.TrimSuffix(method.Segment(), "/"))}
			if method.Static {
				route.Kind = RouteStaticMethod
				route.Path = base + method.Segment()
			} else {
				route.Kind = RouteInstanceMethod
				route.Path = base + PKPlaceholder + "/" + method.Segment()
			}
			routes = append(routes, route)
		}
	}
	for _, t := range i.objects {
		base := t.BasePath() + "/"
		for _, method := range t.methods {
			kind := RouteInstanceMethod
			if method.Static {
				kind = RouteStaticMethod
			}
			routes = append(routes, Route{
				Type:   t.TypeName(),
				Method: method.Name,
				Name:   fmt.Sprintf("%s-%s", t.BasePath(), strings.TrimSuffix(method.Segment(), "/")),
				Kind:   kind,
				Path:   base + method.Segment(),
			})
		}
	}
	return routes
}
