package wasmengine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
	"github.com/cardinal-rs/cardinal/internal/execctx"
)

// ContinueAction is the guest-visible return code from handle() that
// continues the pipeline; any other value denies.
const (
	ContinueAction int32 = 1
)

// Plugin is a compiled, export-validated guest module, a Go analogue of
// the original WasmPlugin.
type Plugin struct {
	engine   *Engine
	compiled wazero.CompiledModule
	path     string
	memory   string
	handle   string
}

// Path returns the filesystem path the plugin was loaded from.
func (p *Plugin) Path() string { return p.path }

// validateExports checks that memory, handle, and the allocator export
// __new are all present.
func (p *Plugin) validateExports() error {
	functions := p.compiled.ExportedFunctions()
	memories := p.compiled.ExportedMemories()

	missing := make([]string, 0, 2)
	if _, ok := functions[p.handle]; !ok {
		missing = append(missing, p.handle)
	}
	if _, ok := functions[exportAllocator]; !ok {
		missing = append(missing, exportAllocator)
	}
	if _, ok := memories[p.memory]; !ok {
		missing = append(missing, p.memory)
	}

	if len(missing) > 0 {
		return cardinalerrors.NewLoadError(
			fmt.Sprintf("wasm plugin %s missing required exports %v", p.path, missing), nil)
	}
	return nil
}

// RunInbound instantiates a fresh guest instance, marshals the inbound
// body through the allocator, and invokes handle(). It returns the
// guest's raw return code.
func (p *Plugin) RunInbound(ctx context.Context, shared *execctx.SharedExecutionContext, pluginName string) (int32, error) {
	return p.run(ctx, shared, pluginName, false)
}

// RunOutbound is identical to RunInbound except the host ABI's outbound-
// only functions (set_header, set_status) become active.
func (p *Plugin) RunOutbound(ctx context.Context, shared *execctx.SharedExecutionContext, pluginName string) (int32, error) {
	return p.run(ctx, shared, pluginName, true)
}

func (p *Plugin) run(ctx context.Context, shared *execctx.SharedExecutionContext, pluginName string, outbound bool) (int32, error) {
	mod, err := p.engine.instantiate(ctx, p.compiled)
	if err != nil {
		return 0, cardinalerrors.NewGuestError(pluginName, "instantiation failed", err)
	}
	defer mod.Close(ctx)

	hostCtx := withHostState(ctx, &hostState{
		shared:    shared,
		outbound:  outbound,
		pluginTag: pluginName,
		logger:    p.engine.logger,
	})

	var body []byte
	shared.View(func(ec *execctx.ExecutionContext) {
		body = ec.Request.Body
	})

	var ptr, length uint64
	if len(body) > 0 {
		allocate := mod.ExportedFunction(exportAllocator)
		if allocate == nil {
			return 0, cardinalerrors.NewGuestError(pluginName, "missing allocator export", nil)
		}
		results, err := allocate.Call(hostCtx, uint64(len(body)), 0)
		if err != nil {
			return 0, cardinalerrors.NewGuestError(pluginName, "allocator call failed", err)
		}
		if len(results) == 0 {
			return 0, cardinalerrors.NewGuestError(pluginName, "allocator returned no result", nil)
		}
		ptr = results[0]
		length = uint64(len(body))

		if !mod.Memory().Write(uint32(ptr), body) {
			return 0, cardinalerrors.NewGuestError(pluginName, "writing request body to guest memory failed", nil)
		}
	}

	handleFn := mod.ExportedFunction(p.handle)
	if handleFn == nil {
		return 0, cardinalerrors.NewGuestError(pluginName, "missing handle export", nil)
	}

	results, err := handleFn.Call(hostCtx, ptr, length)
	if err != nil {
		return 0, cardinalerrors.NewGuestError(pluginName, "handle call trapped", err)
	}
	if len(results) == 0 {
		return 0, cardinalerrors.NewGuestError(pluginName, "handle returned no result", nil)
	}

	return int32(results[0]), nil
}
