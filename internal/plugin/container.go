package plugin

import (
	"context"

	"go.uber.org/zap"

	"github.com/cardinal-rs/cardinal/internal/cardinalconfig"
	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
	"github.com/cardinal-rs/cardinal/internal/destination"
	"github.com/cardinal-rs/cardinal/internal/execctx"
	"github.com/cardinal-rs/cardinal/internal/metrics"
	"github.com/cardinal-rs/cardinal/internal/wasmengine"
)

// WasmLoader compiles and validates a guest module; satisfied by
// *wasmengine.Engine.
type WasmLoader interface {
	Load(ctx context.Context, path string) (*wasmengine.Plugin, error)
}

// Container is the name -> Handler registry: built-ins preloaded first,
// then config-declared plugins, with built-ins immune to override and
// duplicate config names skipped with a warning.
type Container struct {
	handlers map[string]*Handler
	logger   *zap.Logger
}

// NewContainer builds an empty registry. Callers register built-ins via
// RegisterBuiltin (see the builtin package's RegisterAll) before calling
// Load to add configured plugins, so built-ins are always present first
// and immune to override.
func NewContainer(logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{handlers: map[string]*Handler{}, logger: logger}
}

// RegisterBuiltin installs a built-in handler under name. Built-ins are
// registered once at startup by trusted setup code; a duplicate name here
// is a programmer error, not a runtime condition, hence the panic.
func (c *Container) RegisterBuiltin(name string, h *Handler) {
	h.Name = name
	h.Builtin = true
	if _, exists := c.handlers[name]; exists {
		panic("plugin: duplicate built-in handler " + name)
	}
	c.handlers[name] = h
}

// Load adds every plugin declared in configuration, compiling WebAssembly
// modules through loader. Duplicate names (colliding with a built-in or
// an earlier config entry) are skipped with a logged warning, never fatal.
func (c *Container) Load(ctx context.Context, plugins []cardinalconfig.Plugin, loader WasmLoader) error {
	for _, p := range plugins {
		if existing, ok := c.handlers[p.Name]; ok {
			if existing.Builtin {
				c.logger.Warn("plugin name collides with a built-in, ignoring config entry", zap.String("name", p.Name))
			} else {
				c.logger.Warn("duplicate plugin name in configuration, keeping first", zap.String("name", p.Name))
			}
			continue
		}

		switch p.Kind {
		case cardinalconfig.PluginWasm:
			compiled, err := loader.Load(ctx, p.Path)
			if err != nil {
				return cardinalerrors.NewLoadError("loading wasm plugin "+p.Name, err)
			}
			c.handlers[p.Name] = &Handler{Name: p.Name, Kind: KindWasm, Wasm: compiled}
		case cardinalconfig.PluginBuiltin:
			// A builtin-kind config entry with no matching preloaded
			// built-in has nothing to bind to; this is a configuration
			// mistake caught at load time.
			return cardinalerrors.NewLoadError("unknown built-in plugin referenced: "+p.Name, nil)
		default:
			return cardinalerrors.NewLoadError("unrecognized plugin kind for "+p.Name, nil)
		}
	}
	return nil
}

// Get looks up a handler by name.
func (c *Container) Get(name string) (*Handler, bool) {
	h, ok := c.handlers[name]
	return h, ok
}

// RunRequestFilter dispatches an inbound invocation by name. Unknown
// names are logged and skipped (treated as Continue), matching the
// "configuration errors degrade gracefully at runtime" principle.
func (c *Container) RunRequestFilter(ctx context.Context, name string, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) (Result, error) {
	h, ok := c.handlers[name]
	if !ok {
		c.logger.Warn("unknown middleware referenced on request path, skipping", zap.String("name", name))
		return Continue(nil), nil
	}

	switch h.Kind {
	case KindBuiltinInbound:
		return h.Inbound.OnRequest(ctx, shared, dest)
	case KindBuiltinOutbound:
		return Result{}, cardinalerrors.NewProxyError("outbound-only middleware "+name+" referenced on request path", nil)
	case KindWasm:
		action, err := h.Wasm.RunInbound(ctx, shared, name)
		metrics.ObservePlugin(name, "inbound", err)
		if err != nil {
			c.logger.Error("wasm inbound plugin failed, denying request", zap.String("name", name), zap.Error(err))
			shared.SetStatus(403)
			return Responded(), nil
		}
		if action != wasmengine.ContinueAction {
			shared.SetStatus(403)
			return Responded(), nil
		}
		return Continue(nil), nil
	default:
		return Result{}, cardinalerrors.NewProxyError("unrecognized handler kind for "+name, nil)
	}
}

// RunResponseFilter dispatches an outbound invocation. Failures are
// logged and do not abort the remaining outbound handlers.
func (c *Container) RunResponseFilter(ctx context.Context, name string, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) {
	h, ok := c.handlers[name]
	if !ok {
		c.logger.Warn("unknown middleware referenced on response path, skipping", zap.String("name", name))
		return
	}

	switch h.Kind {
	case KindBuiltinOutbound:
		if err := h.Outbound.OnResponse(ctx, shared, dest); err != nil {
			c.logger.Error("outbound middleware failed", zap.String("name", name), zap.Error(err))
		}
	case KindBuiltinInbound:
		c.logger.Error("inbound-only middleware referenced on response path, skipping", zap.String("name", name))
	case KindWasm:
		_, err := h.Wasm.RunOutbound(ctx, shared, name)
		metrics.ObservePlugin(name, "outbound", err)
		if err != nil {
			c.logger.Error("wasm outbound plugin failed, leaving response unmodified", zap.String("name", name), zap.Error(err))
		}
	}
}
