// Package errors defines error types for the toolhub client and registry.
//
// This package provides structured error types that wrap the different
// failure scenarios of talking to capability servers: transport failures,
// request correlation failures, JSON-RPC protocol errors and registry
// management errors. All error types support error unwrapping and can be
// checked using errors.Is, errors.As, and errors.AsType.
package errors
