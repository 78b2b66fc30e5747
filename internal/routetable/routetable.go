// Package routetable is a method-qualified route matcher used by the
// RestrictedRoute built-in, a Go port of
// original_source/src/crates/base/src/router.rs (CardinalRouter), backed
// by go-chi/chi's radix router instead of matchit.
package routetable

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
)

// Table wraps a chi.Mux purely as a route matcher: handlers are never
// invoked, only Match is used to test a (method, path) pair and extract
// path parameters, mirroring CardinalRouter::valid.
type Table struct {
	mux *chi.Mux
}

// New creates an empty route table.
func New() *Table {
	return &Table{mux: chi.NewRouter()}
}

var noop = func(w http.ResponseWriter, r *http.Request) {}

// Add registers a method-qualified route pattern (e.g. "/items/{id}").
// Registering the same method+path twice, or an unparseable pattern
// (chi.Mux.MethodFunc panics on malformed syntax), returns an error
// instead of crashing the load.
func (t *Table) Add(method, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cardinalerrors.NewLoadError(fmt.Sprintf("invalid route pattern %s %s", method, path), fmt.Errorf("%v", r))
		}
	}()

	if t.hasRoute(method, path) {
		return cardinalerrors.NewLoadError(fmt.Sprintf("duplicate route %s %s", method, path), nil)
	}

	t.mux.MethodFunc(method, path, noop)
	return nil
}

// hasRoute probes for an existing exact pattern registration by walking
// the mux's route list.
func (t *Table) hasRoute(method, path string) bool {
	found := false
	_ = chi.Walk(t.mux, func(foundMethod, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		if foundMethod == method && route == path {
			found = true
		}
		return nil
	})
	return found
}

// Valid reports whether method+requestPath matches a registered route,
// and if so returns its extracted path parameters.
func (t *Table) Valid(method, requestPath string) (bool, map[string]string) {
	rctx := chi.NewRouteContext()
	matched := t.mux.Match(rctx, method, requestPath)
	if !matched {
		return false, nil
	}

	params := map[string]string{}
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}
	return true, params
}
