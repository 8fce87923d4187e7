// Package methods holds the built-in analysis catalog.
//
// Every method is a pure function of one channel buffer and its merged
// parameters. Parameters are decoded into a typed struct per method; the
// engine only sees the registered descriptors.
//
// Methods whose cost grows quickly with signal length accept max_samples,
// analyze only the leading samples and report samples_analyzed.
package methods
