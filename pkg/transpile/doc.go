// Package transpile renders TypeScript declarations for registered model and
// object types. Each type becomes a fields interface, a class with a
// constructor-style field mapping and one method per remote method; named
// prefetch shapes become extra interfaces. Text generation goes through the
// template.TemplateRenderer seam so templates can be replaced wholesale.
package transpile
