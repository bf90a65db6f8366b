// Package marshal exposes the runtime marshalling layer derived from model
// descriptors. A Builder classifies a model's fields into concrete, proxy,
// relation and computed groups, binds an optional multi-field validator and
// returns an immutable Marshaller that encodes instances into wire records
// and decodes wire records into validated attributes. Marshallers can be
// expanded with prefetch trees to embed related shapes one relation level at
// a time. The implementation lives in internal/marshal; this package only
// re-exports its types and wires options.
package marshal
