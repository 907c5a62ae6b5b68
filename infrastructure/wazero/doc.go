// Package wazero adapts the wazero runtime to the engine ports.
//
// It provides two pieces:
//
//   - RegisterHostModule instantiates the "testangel_host" module engines
//     import. Its "log" function copies the message out of engine memory and
//     hands it to a ports.LogSink.
//   - Module wraps an instantiated api.Module as a ports.EngineModule after
//     checking it exports every ABI entry point.
//
// # Basic Usage
//
//	rt := wazero.NewRuntime(ctx)
//	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
//
//	if err := tawazero.RegisterHostModule(ctx, rt, loggers); err != nil {
//	    return err
//	}
//
//	mod, err := rt.InstantiateWithConfig(ctx, wasmBytes,
//	    wazero.NewModuleConfig().WithStartFunctions("_initialize"))
//	if err != nil {
//	    return err
//	}
//	engineModule, err := tawazero.NewModule(mod)
package wazero
