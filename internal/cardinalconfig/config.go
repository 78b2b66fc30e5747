// Package cardinalconfig holds Cardinal's configuration data model and the
// TOML-plus-environment-overlay loader.
package cardinalconfig

// MatchValue is either a literal string or a regular expression, mirroring
// the original DestinationMatchValue enum (string | {regex = "..."}).
type MatchValue struct {
	Literal string `toml:"-"`
	Regex   string `toml:"regex,omitempty"`
	isRegex bool
}

// IsRegex reports whether this value was declared as a regex table.
func (m MatchValue) IsRegex() bool { return m.isRegex }

// UnmarshalTOML lets MatchValue accept either a bare string or a
// `{ regex = "..." }` inline table, matching the original config crate's
// untagged enum.
func (m *MatchValue) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		m.Literal = v
		m.isRegex = false
	case map[string]interface{}:
		if re, ok := v["regex"].(string); ok {
			m.Regex = re
			m.isRegex = true
		}
	}
	return nil
}

// DestinationMatch is one matcher entry on a Destination.
type DestinationMatch struct {
	Host       *MatchValue `toml:"host,omitempty"`
	PathPrefix *MatchValue `toml:"path_prefix,omitempty"`
	PathExact  string      `toml:"path_exact,omitempty"`
	// Expression is a CEL matcher expression. It is
	// evaluated only when no host/path qualifier is present on the entry,
	// after all ordinary host-less matchers have been tried.
	Expression string `toml:"expression,omitempty"`
}

// MiddlewareType distinguishes inbound (pre-upstream) from outbound
// (post-upstream) middleware bindings.
type MiddlewareType string

const (
	MiddlewareInbound  MiddlewareType = "inbound"
	MiddlewareOutbound MiddlewareType = "outbound"
)

// MiddlewareRef binds a named plugin to a destination in a given direction.
type MiddlewareRef struct {
	Name string         `toml:"name"`
	Type MiddlewareType `toml:"type"`
}

// Route is a (method, path-pattern) pair bound to a destination.
type Route struct {
	Method string `toml:"method"`
	Path   string `toml:"path"`
}

// RetryBackoffType selects the retry delay growth function.
type RetryBackoffType string

const (
	BackoffNone        RetryBackoffType = "none"
	BackoffLinear      RetryBackoffType = "linear"
	BackoffExponential RetryBackoffType = "exponential"
)

// Retry configures the per-destination retry/backoff state machine.
type Retry struct {
	MaxAttempts int              `toml:"max_attempts"`
	IntervalMs  int64            `toml:"interval_ms"`
	BackoffType RetryBackoffType `toml:"backoff_type"`
}

// Timeout holds per-destination timeouts. The proxy loop applies DialMs
// as a deadline on the whole upstream exchange (dial, response headers
// and body read), not on the dial alone; IdleMs is parsed but not applied.
type Timeout struct {
	DialMs int64 `toml:"dial_ms"`
	IdleMs int64 `toml:"idle_ms"`
}

// HealthCheck is accepted but not actively polled by the core engine; it is
// carried through for external collaborators.
type HealthCheck struct {
	Path         string `toml:"path"`
	IntervalMs   int64  `toml:"interval_ms"`
	TimeoutMs    int64  `toml:"timeout_ms"`
	ExpectStatus int    `toml:"expect_status"`
}

// Destination is a named logical backend.
type Destination struct {
	Name        string              `toml:"-"`
	URL         string              `toml:"url"`
	Default     bool                `toml:"default"`
	HealthCheck *HealthCheck        `toml:"health_check,omitempty"`
	Match       []DestinationMatch  `toml:"match,omitempty"`
	Routes      []Route             `toml:"routes,omitempty"`
	Middleware  []MiddlewareRef     `toml:"middleware,omitempty"`
	Timeout     *Timeout            `toml:"timeout,omitempty"`
	Retry       *Retry              `toml:"retry,omitempty"`
}

// PluginKind distinguishes a built-in plugin reference from a WebAssembly
// module descriptor.
type PluginKind string

const (
	PluginBuiltin PluginKind = "builtin"
	PluginWasm    PluginKind = "wasm"
)

// Plugin is one entry of the top-level `plugins` array.
type Plugin struct {
	Name string     `toml:"name"`
	Kind PluginKind `toml:"kind"`
	Path string     `toml:"path,omitempty"` // wasm module path
}

// Server is the top-level `server` table.
type Server struct {
	Address                 string   `toml:"address"`
	ForcePathParameter       bool     `toml:"force_path_parameter"`
	LogUpstreamResponse      bool     `toml:"log_upstream_response"`
	GlobalRequestMiddleware  []string `toml:"global_request_middleware"`
	GlobalResponseMiddleware []string `toml:"global_response_middleware"`
}

// Config is the fully parsed, merged Cardinal configuration.
type Config struct {
	Server       Server                  `toml:"server"`
	Destinations map[string]*Destination `toml:"destinations"`
	Plugins      []Plugin                `toml:"plugins"`
}

// DefaultServer mirrors the original config crate's ServerConfig::default.
func DefaultServer() Server {
	return Server{Address: "0.0.0.0:1704"}
}
