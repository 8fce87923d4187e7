// Package analysis defines the method registry and the execution-time types
// shared by every analysis method: descriptors, parameters, the immutable
// execution context and the per-channel input/output contract.
//
// Methods are plain functions. They never see the registry and never call
// each other; the engine resolves them by identifier and invokes each one on a
// private copy of one channel buffer.
package analysis
