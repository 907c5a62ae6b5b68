// Package host loads and drives TestAngel engines.
//
// An Executor owns a wazero runtime with the testangel_host import module
// and turns WASM bytes into ports.EngineModule values. An Instance wraps a
// module with the host half of the ABI: the signature and IPC version
// handshake, allocation of inputs in engine memory, decoding of results and
// release of every engine-owned structure through its paired free export.
// A Dispatcher layers the instruction flags on top of an Instance.
//
// Instances work with any ports.EngineModule, so Go engines can be driven
// in-process through engine.NewModule without a WASM build.
package host
