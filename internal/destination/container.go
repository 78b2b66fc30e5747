package destination

import (
	"net/http"
	"sort"
	"strings"

	"github.com/cardinal-rs/cardinal/internal/cardinalconfig"
)

// Container holds every configured destination by name plus the matcher
// index, and implements the force-path-parameter / subdomain fallback
// lookup from the original DestinationContainer::get_backend_for_request.
type Container struct {
	byName  map[string]*Wrapper
	names   []string // sorted, for deterministic iteration
	def     *Wrapper
	matcher *MatcherIndex
}

// NewContainer builds a Container from the parsed configuration.
func NewContainer(cfg *cardinalconfig.Config) (*Container, error) {
	byName := map[string]*Wrapper{}
	var def *Wrapper
	var names []string
	var wrappers []*Wrapper

	for name, destCfg := range cfg.Destinations {
		w, err := NewWrapper(destCfg)
		if err != nil {
			return nil, err
		}
		byName[name] = w
		names = append(names, name)
		wrappers = append(wrappers, w)
		if destCfg.Default {
			def = w
		}
	}
	sort.Strings(names)

	idx, err := NewMatcherIndex(wrappers)
	if err != nil {
		return nil, err
	}

	return &Container{byName: byName, names: names, def: def, matcher: idx}, nil
}

// Get looks up a destination by configured name.
func (c *Container) Get(name string) (*Wrapper, bool) {
	w, ok := c.byName[name]
	return w, ok
}

// Default returns the configured default destination, if any.
func (c *Container) Default() *Wrapper {
	return c.def
}

// Names returns every configured destination name in sorted order.
func (c *Container) Names() []string {
	return c.names
}

// Resolve queries the matcher index first; if nothing matches and
// forceParameter is set, fall back to treating the first path segment as
// a destination identifier (or, when unset, to extracting a subdomain
// from the Host header); finally fall back to the default destination.
func (c *Container) Resolve(req *http.Request, forceParameter bool) *Wrapper {
	if w := c.matcher.Resolve(req); w != nil {
		return w
	}

	var candidate string
	if forceParameter {
		candidate = firstPathSegment(req)
	} else {
		candidate = extractSubdomain(req)
	}

	if candidate != "" {
		if w, ok := c.byName[candidate]; ok {
			return w
		}
	}

	return c.def
}

func firstPathSegment(req *http.Request) string {
	path := req.URL.Path
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return ""
	}
	segment := trimmed
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		segment = trimmed[:i]
	}
	if segment == "" {
		return ""
	}
	return strings.ToLower(segment)
}

func extractSubdomain(req *http.Request) string {
	host := requestHost(req)
	if host == "" {
		return ""
	}

	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}

	first := parts[0]
	if first == "" || first == "www" {
		return ""
	}
	return first
}
