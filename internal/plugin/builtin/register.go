package builtin

import "github.com/cardinal-rs/cardinal/internal/plugin"

// RegisterAll installs every built-in handler into c. Called once at
// startup before configured plugins are loaded.
func RegisterAll(c *plugin.Container) {
	c.RegisterBuiltin(RestrictedRouteName, &plugin.Handler{
		Kind:    plugin.KindBuiltinInbound,
		Inbound: RestrictedRoute{},
	})
	c.RegisterBuiltin(ResponseCompressionName, &plugin.Handler{
		Kind:     plugin.KindBuiltinOutbound,
		Outbound: ResponseCompression{},
	})
}
