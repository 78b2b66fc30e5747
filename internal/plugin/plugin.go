// Package plugin is the name-keyed registry of request/response handlers
// (built-in or WebAssembly) that middleware bindings reference by name, a
// Go port of original_source/src/crates/plugins (container + dispatch
// contracts).
package plugin

import (
	"context"

	"github.com/cardinal-rs/cardinal/internal/destination"
	"github.com/cardinal-rs/cardinal/internal/execctx"
)

// Result is the outcome of an inbound handler invocation.
type Result struct {
	Responded bool
	Vars      map[string]string
}

// Continue builds a Result that lets the pipeline proceed, carrying any
// variables the handler wants folded into the request's accumulated map.
func Continue(vars map[string]string) Result {
	if vars == nil {
		vars = map[string]string{}
	}
	return Result{Vars: vars}
}

// Responded builds a Result that stops the pipeline; the handler already
// wrote the client response.
func Responded() Result {
	return Result{Responded: true}
}

// InboundHandler runs before the upstream request is dialed.
type InboundHandler interface {
	OnRequest(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) (Result, error)
}

// OutboundHandler runs after the upstream response header is received.
type OutboundHandler interface {
	OnResponse(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) error
}

// InboundFunc adapts a plain function to InboundHandler.
type InboundFunc func(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) (Result, error)

func (f InboundFunc) OnRequest(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) (Result, error) {
	return f(ctx, shared, dest)
}

// OutboundFunc adapts a plain function to OutboundHandler.
type OutboundFunc func(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) error

func (f OutboundFunc) OnResponse(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) error {
	return f(ctx, shared, dest)
}

// Kind tags which variant a Handler carries, the closed union behind
// the PluginHandler contract.
type Kind int

const (
	KindBuiltinInbound Kind = iota
	KindBuiltinOutbound
	KindWasm
)

// WasmRunner is satisfied by *wasmengine.Plugin; declared here to avoid a
// dependency cycle between plugin and wasmengine.
type WasmRunner interface {
	RunInbound(ctx context.Context, shared *execctx.SharedExecutionContext, pluginName string) (int32, error)
	RunOutbound(ctx context.Context, shared *execctx.SharedExecutionContext, pluginName string) (int32, error)
	Path() string
}

// Handler is one named entry in the Container.
type Handler struct {
	Name     string
	Kind     Kind
	Inbound  InboundHandler
	Outbound OutboundHandler
	Wasm     WasmRunner
	Builtin  bool
}
