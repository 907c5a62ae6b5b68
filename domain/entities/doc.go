// Package entities provides the core data model shared by TestAngel hosts and engines.
// These types describe what crosses the engine boundary (values, evidence,
// metadata and results) independently of how they are laid out in memory.
// The C layout used on the wire lives in internal/abi.
package entities
