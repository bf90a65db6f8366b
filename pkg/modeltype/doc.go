// Package modeltype is the registration surface: models are registered once
// at startup into a Registry, which hands back ModelType handles carrying the
// cached marshaller, the base path and the remote methods of the type.
// Interfaces group model and object types for transpiling and expose the
// route path strings a routing layer needs to mount them.
package modeltype
