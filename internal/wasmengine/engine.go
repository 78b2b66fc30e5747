// Package wasmengine compiles and runs the WebAssembly guest modules that
// back Wasm-kind plugins, a Go port of
// original_source/src/crates/wasm-plugins/src/plugin.rs, adapted from
// wasmer (the original host runtime) to wazero, the pure-Go WebAssembly
// runtime used across the retrieved example pack. Host ABI wiring follows
// the style of the wudi-gateway wasm middleware (other_examples), the
// primary Go-idiom source for per-request instantiation and linear-memory
// marshalling.
package wasmengine

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
)

const (
	exportMemory    = "memory"
	exportHandle    = "handle"
	exportAllocator = "__new"
)

// Engine owns the shared wazero runtime and the compiled host "env"
// module every guest imports from. It is process-wide and immutable
// after construction.
type Engine struct {
	runtime wazero.Runtime
	env     wazero.CompiledModule
	logger  *zap.Logger
}

// NewEngine builds the runtime and registers the host ABI functions in
// namespace "env". logger is used only for best-effort abort() diagnostics.
func NewEngine(ctx context.Context, logger *zap.Logger) (*Engine, error) {
	runtime := wazero.NewRuntime(ctx)

	envCompiled, err := buildHostModule(runtime).Compile(ctx)
	if err != nil {
		runtime.Close(ctx)
		return nil, cardinalerrors.NewLoadError("compiling wasm host module", err)
	}

	if _, err := runtime.InstantiateModule(ctx, envCompiled, wazero.NewModuleConfig().WithName("env")); err != nil {
		runtime.Close(ctx)
		return nil, cardinalerrors.NewLoadError("instantiating wasm host module", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{runtime: runtime, env: envCompiled, logger: logger}, nil
}

// Close releases the runtime and every module compiled against it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Load reads, compiles, and validates a guest module at path.
func (e *Engine) Load(ctx context.Context, path string) (*Plugin, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, cardinalerrors.NewLoadError("reading wasm plugin "+path, err)
	}

	compiled, err := e.runtime.CompileModule(ctx, bytes)
	if err != nil {
		return nil, cardinalerrors.NewLoadError("compiling wasm plugin "+path, err)
	}

	plugin := &Plugin{
		engine:   e,
		compiled: compiled,
		path:     path,
		memory:   exportMemory,
		handle:   exportHandle,
	}

	if err := plugin.validateExports(); err != nil {
		return nil, err
	}

	return plugin, nil
}

func (e *Engine) instantiate(ctx context.Context, compiled wazero.CompiledModule) (api.Module, error) {
	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("instantiating guest module: %w", err)
	}
	return mod, nil
}
