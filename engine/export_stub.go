//go:build !wasip1

package engine

// Register is a no-op outside wasip1. Use NewModule to run an engine
// in-process.
func Register(_ *Engine, _ ...SurfaceOption) {}
