// Package execctx holds per-request execution state shared between the
// proxy loop and middleware/plugins, a Go port of the original
// ExecutionContext / Arc<RwLock<ExecutionContext>> pair
// (original_source/src/crates/base/src/execution_context.rs).
package execctx

import (
	"net/url"
	"strings"
	"sync"
)

// RequestState carries the inbound request as seen by the pipeline.
// Headers and query parameters are stored case-normalized (lowercased
// keys) so plugin lookups are consistent regardless of client casing.
type RequestState struct {
	Method  string
	Path    string
	Headers map[string][]string
	Query   map[string][]string
	Body    []byte
	// Vars holds arbitrary persistent key/value state set by middleware
	// via set_req_var / read via get_req_var, surviving across stages.
	Vars map[string]string
}

// ResponseState carries the response being assembled for the client.
type ResponseState struct {
	Headers          map[string][]string
	Status           int
	StatusOverridden bool
	Body             []byte
}

// ExecutionContext is the full mutable state for one request's journey
// through the pipeline.
type ExecutionContext struct {
	Request  RequestState
	Response ResponseState
	// DestinationName is the resolved backend identifier, set once
	// destination matching completes.
	DestinationName string
}

// SharedExecutionContext is an RWMutex-guarded ExecutionContext, mirroring
// the original Arc<RwLock<ExecutionContext>>: readers (most host ABI
// getters) take the read lock, writers (set_header, set_status,
// set_req_var) take the write lock.
type SharedExecutionContext struct {
	mu  sync.RWMutex
	ctx *ExecutionContext
}

// NewShared builds a SharedExecutionContext from an inbound request's raw
// parts, normalizing header and query keys to lowercase.
func NewShared(method, path string, rawHeaders map[string][]string, rawQuery string, body []byte) *SharedExecutionContext {
	headers := normalizeHeaders(rawHeaders)
	query := parseQuery(rawQuery)

	return &SharedExecutionContext{
		ctx: &ExecutionContext{
			Request: RequestState{
				Method:  method,
				Path:    path,
				Headers: headers,
				Query:   query,
				Body:    body,
				Vars:    map[string]string{},
			},
			Response: ResponseState{
				Headers: map[string][]string{},
				Status:  200,
			},
		},
	}
}

func normalizeHeaders(raw map[string][]string) map[string][]string {
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		out[strings.ToLower(k)] = v
	}
	return out
}

// parseQuery preserves ordered multi-values per key, lowercasing keys the
// same way headers are normalized.
func parseQuery(raw string) map[string][]string {
	out := map[string][]string{}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return out
	}
	for k, v := range values {
		out[strings.ToLower(k)] = v
	}
	return out
}

// View runs fn with a read lock held, for read-only access patterns.
func (s *SharedExecutionContext) View(fn func(*ExecutionContext)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.ctx)
}

// Mutate runs fn with the write lock held.
func (s *SharedExecutionContext) Mutate(fn func(*ExecutionContext)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ctx)
}

// Header returns the first value of a request header, case-insensitively.
func (s *SharedExecutionContext) Header(name string) (string, bool) {
	var val string
	var ok bool
	s.View(func(ctx *ExecutionContext) {
		vs, found := ctx.Request.Headers[strings.ToLower(name)]
		if found && len(vs) > 0 {
			val, ok = vs[0], true
		}
	})
	return val, ok
}

// QueryParam returns the first value of a query parameter, case-insensitively.
func (s *SharedExecutionContext) QueryParam(name string) (string, bool) {
	var val string
	var ok bool
	s.View(func(ctx *ExecutionContext) {
		vs, found := ctx.Request.Query[strings.ToLower(name)]
		if found && len(vs) > 0 {
			val, ok = vs[0], true
		}
	})
	return val, ok
}

// ReqVar reads a persistent request-scoped variable.
func (s *SharedExecutionContext) ReqVar(name string) (string, bool) {
	var val string
	var ok bool
	s.View(func(ctx *ExecutionContext) {
		val, ok = ctx.Request.Vars[name]
	})
	return val, ok
}

// SetReqVar writes a persistent request-scoped variable.
func (s *SharedExecutionContext) SetReqVar(name, value string) {
	s.Mutate(func(ctx *ExecutionContext) {
		ctx.Request.Vars[name] = value
	})
}

// SetHeader sets a response header, outbound-only per the host ABI.
func (s *SharedExecutionContext) SetHeader(name, value string) {
	s.Mutate(func(ctx *ExecutionContext) {
		ctx.Response.Headers[strings.ToLower(name)] = []string{value}
	})
}

// SetStatus sets the response status, outbound-only, validating the HTTP
// status range per the host ABI (100-599 inclusive).
func (s *SharedExecutionContext) SetStatus(code int) bool {
	if code < 100 || code > 599 {
		return false
	}
	s.Mutate(func(ctx *ExecutionContext) {
		ctx.Response.Status = code
		ctx.Response.StatusOverridden = true
	})
	return true
}

// SetDestination records the resolved destination name.
func (s *SharedExecutionContext) SetDestination(name string) {
	s.Mutate(func(ctx *ExecutionContext) {
		ctx.DestinationName = name
	})
}

// Snapshot returns a shallow copy of the current ExecutionContext for
// logging/inspection without holding the lock beyond the call.
func (s *SharedExecutionContext) Snapshot() ExecutionContext {
	var out ExecutionContext
	s.View(func(ctx *ExecutionContext) {
		out = *ctx
	})
	return out
}
