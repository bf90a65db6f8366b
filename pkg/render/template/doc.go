// Package template defines the text templating seam used to emit generated
// artifacts. The gotemplate subpackage provides the pongo2-backed engine.
package template
