// Package projection turns a marshaller's resolved field set into ordered
// type declarations and an object type's remote methods into call
// signatures. The output is plain data; rendering it into source text is left
// to the transpile package.
package projection
