// Package middleware sequences global and per-destination handler lists
// around the upstream dial, a Go port of
// original_source/src/crates/plugins/src/runner/mod.rs (PluginRunner).
package middleware

import (
	"context"

	"github.com/cardinal-rs/cardinal/internal/destination"
	"github.com/cardinal-rs/cardinal/internal/execctx"
	"github.com/cardinal-rs/cardinal/internal/plugin"
)

// FilterDispatcher runs a single named filter by delegating to the
// plugin container; satisfied by *plugin.Container.
type FilterDispatcher interface {
	RunRequestFilter(ctx context.Context, name string, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) (plugin.Result, error)
	RunResponseFilter(ctx context.Context, name string, shared *execctx.SharedExecutionContext, dest *destination.Wrapper)
}

// Runner materializes the global-plus-destination inbound and outbound
// handler lists and enforces the configured inbound/outbound sequencing.
type Runner struct {
	globalRequest  []string
	globalResponse []string
	dispatcher     FilterDispatcher
}

// NewRunner builds a Runner bound to the server's global middleware lists.
func NewRunner(globalRequest, globalResponse []string, dispatcher FilterDispatcher) *Runner {
	return &Runner{globalRequest: globalRequest, globalResponse: globalResponse, dispatcher: dispatcher}
}

// Outcome is the result of running the inbound chain.
type Outcome struct {
	Responded bool
	Vars      map[string]string
}

// RunRequestFilters runs global inbound handlers, then the destination's
// own inbound handlers, in order. The first Responded short-circuits the
// rest and skips the upstream dial; any error becomes a 500-equivalent
// Responded outcome, translated by the caller.
func (r *Runner) RunRequestFilters(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) (Outcome, error) {
	vars := map[string]string{}

	for _, name := range r.globalRequest {
		result, err := r.dispatcher.RunRequestFilter(ctx, name, shared, dest)
		if err != nil {
			return Outcome{Responded: true}, err
		}
		if result.Responded {
			return Outcome{Responded: true}, nil
		}
		for k, v := range result.Vars {
			vars[k] = v
		}
	}

	for _, ref := range dest.InboundMiddleware {
		result, err := r.dispatcher.RunRequestFilter(ctx, ref.Name, shared, dest)
		if err != nil {
			return Outcome{Responded: true}, err
		}
		if result.Responded {
			return Outcome{Responded: true}, nil
		}
		for k, v := range result.Vars {
			vars[k] = v
		}
	}

	return Outcome{Vars: vars}, nil
}

// RunResponseFilters runs global outbound handlers, then the
// destination's own outbound handlers, in order. Individual failures are
// logged by the dispatcher and never abort the remaining handlers.
func (r *Runner) RunResponseFilters(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) {
	for _, name := range r.globalResponse {
		r.dispatcher.RunResponseFilter(ctx, name, shared, dest)
	}

	for _, ref := range dest.OutboundMiddleware {
		r.dispatcher.RunResponseFilter(ctx, ref.Name, shared, dest)
	}
}
