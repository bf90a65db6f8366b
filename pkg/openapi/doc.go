// Package openapi projects registered model and object types into an
// OpenAPI 3 document using kin-openapi. Every type becomes a component
// schema; model types get collection, detail and remote-method paths, object
// types get one path per remote method.
package openapi
