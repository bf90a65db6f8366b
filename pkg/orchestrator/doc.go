// Package orchestrator wires the manifest → registry → interface → transpiler
// pipeline behind a single Generate call, with optional OpenAPI export and
// transformer hooks for callers that need to adjust the assembled interface.
package orchestrator
