//go:build wasip1

// Command demo-engine is the demo engine packaged as a WASM module.
//
// Build:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o engines/demo.wasm ./cmd/demo-engine
package main

import (
	"github.com/testangel/testangel-sdk/engine"
	"github.com/testangel/testangel-sdk/engines/demo"
)

func init() {
	engine.Register(demo.New())
}

func main() {}
