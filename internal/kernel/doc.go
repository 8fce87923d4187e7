// Package kernel holds the numeric building blocks behind the built-in
// analysis methods: FFT spectra, correlation, windows, moments, envelopes,
// peak picking and entropy. Functions allocate their outputs and never modify
// their inputs.
package kernel
