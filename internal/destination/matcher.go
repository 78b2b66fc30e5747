// Package destination resolves an inbound request to a configured
// backend, a Go port of original_source/src/crates/base/src/destinations
// (matcher.rs and container.rs). Resolution runs the bucketed matcher
// index first, then (when enabled) a force-path-parameter or subdomain
// lookup, then the default destination.
package destination

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/cardinal-rs/cardinal/internal/cardinalconfig"
	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
	"github.com/cardinal-rs/cardinal/internal/routetable"
)

// Wrapper binds a parsed Destination to its compiled inbound/outbound
// middleware lists and its route table, the Go analogue of
// DestinationWrapper.
type Wrapper struct {
	Config             *cardinalconfig.Destination
	InboundMiddleware  []cardinalconfig.MiddlewareRef
	OutboundMiddleware []cardinalconfig.MiddlewareRef
	HasRoutes          bool
	Router             *routetable.Table
}

// NewWrapper splits a Destination's middleware list by direction and
// builds its restricted-route table, normalizing each route's method to
// upper case so RestrictedRoute's lookups (which normalize the same way)
// hit consistently.
func NewWrapper(cfg *cardinalconfig.Destination) (*Wrapper, error) {
	w := &Wrapper{Config: cfg, HasRoutes: len(cfg.Routes) > 0, Router: routetable.New()}
	for _, m := range cfg.Middleware {
		switch m.Type {
		case cardinalconfig.MiddlewareInbound:
			w.InboundMiddleware = append(w.InboundMiddleware, m)
		case cardinalconfig.MiddlewareOutbound:
			w.OutboundMiddleware = append(w.OutboundMiddleware, m)
		}
	}
	for _, route := range cfg.Routes {
		method := strings.ToUpper(route.Method)
		if err := w.Router.Add(method, route.Path); err != nil {
			return nil, cardinalerrors.NewLoadError(
				"registering route "+method+" "+route.Path+" for destination "+cfg.Name, err)
		}
	}
	return w, nil
}

type hostMatcherKind int

const (
	hostNone hostMatcherKind = iota
	hostExact
	hostRegex
)

type compiledPathKind int

const (
	pathNone compiledPathKind = iota
	pathPrefix
	pathRegex
)

type compiledDestination struct {
	wrapper    *Wrapper
	pathKind   compiledPathKind
	pathPrefix string
	pathRegex  *regexp.Regexp
	pathExact  string
	hasExact   bool
}

func (c *compiledDestination) matches(path string) *Wrapper {
	if c.hasExact && path != c.pathExact {
		return nil
	}
	switch c.pathKind {
	case pathPrefix:
		if !strings.HasPrefix(path, c.pathPrefix) {
			return nil
		}
	case pathRegex:
		if !c.pathRegex.MatchString(path) {
			return nil
		}
	}
	return c.wrapper
}

type regexHostEntry struct {
	matcher     *regexp.Regexp
	destination compiledDestination
}

// MatcherIndex is the bucketed exact-host/regex-host/host-less matcher
// table, resolved in that precedence order.
type MatcherIndex struct {
	exactHost  map[string][]compiledDestination
	regexHost  []regexHostEntry
	hostless   []compiledDestination
	expression []compiledExpression
}

// NewMatcherIndex compiles every destination's match entries into the
// four precedence buckets, preserving configured load order within each
// bucket. A match entry with no host or path qualifier but an Expression
// falls into the lowest-precedence expression bucket, evaluated with
// cel-go against a small host/path/method environment.
func NewMatcherIndex(wrappers []*Wrapper) (*MatcherIndex, error) {
	idx := &MatcherIndex{exactHost: map[string][]compiledDestination{}}

	for _, w := range wrappers {
		matchers := w.Config.Match
		for _, m := range matchers {
			if m.Host == nil && m.PathPrefix == nil && m.PathExact == "" && m.Expression != "" {
				expr, err := compileExpression(w, m.Expression)
				if err != nil {
					return nil, err
				}
				idx.expression = append(idx.expression, expr)
				continue
			}

			hostKind, hostExactVal, hostRe, err := compileHostMatcher(m.Host)
			if err != nil {
				return nil, cardinalerrors.NewLoadError("compiling host matcher for destination "+w.Config.Name, err)
			}

			pathKind, pathPrefixVal, pathRe, err := compilePathPrefix(m.PathPrefix)
			if err != nil {
				return nil, cardinalerrors.NewLoadError("compiling path matcher for destination "+w.Config.Name, err)
			}

			compiled := compiledDestination{
				wrapper:    w,
				pathKind:   pathKind,
				pathPrefix: pathPrefixVal,
				pathRegex:  pathRe,
				pathExact:  m.PathExact,
				hasExact:   m.PathExact != "",
			}

			switch hostKind {
			case hostExact:
				idx.exactHost[hostExactVal] = append(idx.exactHost[hostExactVal], compiled)
			case hostRegex:
				idx.regexHost = append(idx.regexHost, regexHostEntry{matcher: hostRe, destination: compiled})
			default:
				idx.hostless = append(idx.hostless, compiled)
			}
		}
	}

	return idx, nil
}

// Resolve walks the exact-host, regex-host, host-less, then expression
// buckets in order, returning the first destination that matches. The
// expression bucket never changes precedence among the other three; it
// only catches requests none of them claimed.
func (idx *MatcherIndex) Resolve(req *http.Request) *Wrapper {
	host := requestHost(req)
	path := req.URL.Path

	if host != "" {
		for _, candidate := range idx.exactHost[host] {
			if w := candidate.matches(path); w != nil {
				return w
			}
		}
		for _, entry := range idx.regexHost {
			if entry.matcher.MatchString(host) {
				if w := entry.destination.matches(path); w != nil {
					return w
				}
			}
		}
	}

	for _, candidate := range idx.hostless {
		if w := candidate.matches(path); w != nil {
			return w
		}
	}

	for _, expr := range idx.expression {
		if expr.matches(host, path, req.Method) {
			return expr.wrapper
		}
	}

	return nil
}

func compileHostMatcher(v *cardinalconfig.MatchValue) (hostMatcherKind, string, *regexp.Regexp, error) {
	if v == nil {
		return hostNone, "", nil, nil
	}
	if v.IsRegex() {
		re, err := regexp.Compile(v.Regex)
		if err != nil {
			return hostNone, "", nil, err
		}
		return hostRegex, "", re, nil
	}
	return hostExact, strings.ToLower(v.Literal), nil, nil
}

func compilePathPrefix(v *cardinalconfig.MatchValue) (compiledPathKind, string, *regexp.Regexp, error) {
	if v == nil {
		return pathNone, "", nil, nil
	}
	if v.IsRegex() {
		re, err := regexp.Compile(v.Regex)
		if err != nil {
			return pathNone, "", nil, err
		}
		return pathRegex, "", re, nil
	}
	return pathPrefix, v.Literal, nil, nil
}

func requestHost(req *http.Request) string {
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	if host == "" {
		host = req.Header.Get("Host")
	}
	if host == "" {
		return ""
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}
