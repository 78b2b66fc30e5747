// Package builtin holds Cardinal's native (non-WebAssembly) handlers, a
// Go port of original_source/src/crates/plugins/src/builtin.
package builtin

import (
	"context"
	"strings"

	"github.com/cardinal-rs/cardinal/internal/destination"
	"github.com/cardinal-rs/cardinal/internal/execctx"
	"github.com/cardinal-rs/cardinal/internal/plugin"
)

// ParamHeaderPrefix is the fixed prefix RestrictedRoute uses to surface
// extracted path parameters to the upstream.
const ParamHeaderPrefix = "X-Cardinal-Param-"

// RestrictedRouteName is the built-in's registry name.
const RestrictedRouteName = "restricted_route"

// RestrictedRoute is the built-in inbound handler from
// restricted_route_middleware.rs: when the chosen destination carries
// any routes, unmatched (method, path) pairs are rejected with 402.
type RestrictedRoute struct{}

func (RestrictedRoute) OnRequest(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) (plugin.Result, error) {
	if dest == nil || !dest.HasRoutes {
		return plugin.Continue(nil), nil
	}

	var method, path string
	shared.View(func(ec *execctx.ExecutionContext) {
		method = ec.Request.Method
		path = ec.Request.Path
	})

	ok, params := dest.Router.Valid(strings.ToUpper(method), path)
	if !ok {
		shared.SetStatus(402)
		return plugin.Responded(), nil
	}

	for name, value := range params {
		shared.Mutate(func(ec *execctx.ExecutionContext) {
			ec.Request.Headers[strings.ToLower(ParamHeaderPrefix+name)] = []string{value}
		})
	}

	return plugin.Continue(nil), nil
}
