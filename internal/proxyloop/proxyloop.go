// Package proxyloop is the per-request forwarding loop: resolve a
// destination, run inbound middleware, dial the upstream preferring
// HTTP/2, buffer the full upstream response, run outbound middleware on
// it, then write it to the client. Hop-by-hop header stripping and the dial
// transport are grounded on
// caddyserver-caddy/caddyhttp/proxy/reverseproxy.go's hopHeaders list and
// its http2-over-TLS dial pattern, adapted to golang.org/x/net/http2.
package proxyloop

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"go.uber.org/zap"

	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
	"github.com/cardinal-rs/cardinal/internal/destination"
	"github.com/cardinal-rs/cardinal/internal/execctx"
	"github.com/cardinal-rs/cardinal/internal/metrics"
	"github.com/cardinal-rs/cardinal/internal/middleware"
	"github.com/cardinal-rs/cardinal/internal/retry"
)

// hopHeaders are stripped from both the outbound request and the
// upstream response, matching RFC 2616 §13.5.1's hop-by-hop set.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Server is the HTTP handler that drives the proxy loop for every
// incoming request.
type Server struct {
	Destinations        *destination.Container
	Runner              *middleware.Runner
	Logger              *zap.Logger
	ForcePathParameter  bool
	LogUpstreamResponse bool
	transport           *http.Transport
}

// NewServer builds a Server with a shared upstream transport configured
// to prefer HTTP/2 over TLS, falling back to HTTP/1.1 when the upstream
// doesn't negotiate h2 (or isn't using TLS at all).
func NewServer(destinations *destination.Container, runner *middleware.Runner, logger *zap.Logger, forcePathParameter, logUpstreamResponse bool) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warn("failed to enable http2 on upstream transport, continuing with http/1.1 only", zap.Error(err))
	}

	return &Server{
		Destinations:        destinations,
		Runner:              runner,
		Logger:              logger,
		ForcePathParameter:  forcePathParameter,
		LogUpstreamResponse: logUpstreamResponse,
		transport:           transport,
	}
}

// ServeHTTP implements the proxy request lifecycle end to end.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	dest := s.Destinations.Resolve(r, s.ForcePathParameter)
	if dest == nil {
		http.Error(w, "no matching destination", http.StatusNotFound)
		return
	}

	path := rewrittenPath(r.URL.Path, dest.Config.Name, s.ForcePathParameter)

	body, err := readBody(r)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	shared := execctx.NewShared(r.Method, path, r.Header, r.URL.RawQuery, body)
	shared.SetDestination(dest.Config.Name)

	outcome, err := s.Runner.RunRequestFilters(ctx, shared, dest)
	if err != nil {
		s.Logger.Error("inbound middleware failed", zap.String("destination", dest.Config.Name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if outcome.Responded {
		s.writeFromShared(w, shared, dest.Config.Name, start)
		return
	}

	origin, err := parseOrigin(dest.Config.URL)
	if err != nil {
		s.Logger.Error("invalid destination origin", zap.String("destination", dest.Config.Name), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	reqCtx := ctx
	if dest.Config.Timeout != nil && dest.Config.Timeout.DialMs > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, time.Duration(dest.Config.Timeout.DialMs)*time.Millisecond)
		defer cancel()
	}

	resp, err := s.dialUpstream(reqCtx, origin, path, r.URL.RawQuery, shared, dest)
	if err != nil {
		s.Logger.Error("upstream dial failed", zap.String("destination", dest.Config.Name), zap.Error(err))
		metrics.ObserveRequest(dest.Config.Name, "502", time.Since(start).Seconds())
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.Logger.Error("reading upstream response body failed", zap.String("destination", dest.Config.Name), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	stripHopHeaders(resp.Header)

	shared.Mutate(func(ec *execctx.ExecutionContext) {
		ec.Response.Status = resp.StatusCode
		ec.Response.Headers = normalizeResponseHeaders(resp.Header)
		ec.Response.Body = respBody
	})

	s.Runner.RunResponseFilters(ctx, shared, dest)

	s.writeFromShared(w, shared, dest.Config.Name, start)
}

func (s *Server) dialUpstream(ctx context.Context, origin *url.URL, path, rawQuery string, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) (*http.Response, error) {
	state := retry.FromConfig(dest.Config.Retry)

	for {
		outReq, err := s.buildOutboundRequest(ctx, origin, path, rawQuery, shared)
		if err != nil {
			return nil, err
		}

		resp, err := s.transport.RoundTrip(outReq)
		if err == nil {
			return resp, nil
		}

		state.RegisterAttempt()
		metrics.ObserveRetry(dest.Config.Name)
		if !state.SleepIfRetryAllowed(ctx) {
			return nil, err
		}
	}
}

func (s *Server) buildOutboundRequest(ctx context.Context, origin *url.URL, path, rawQuery string, shared *execctx.SharedExecutionContext) (*http.Request, error) {
	target := *origin
	target.Path = path
	target.RawQuery = rawQuery

	var method string
	var bodyBytes []byte
	var headers map[string][]string
	shared.View(func(ec *execctx.ExecutionContext) {
		method = ec.Request.Method
		bodyBytes = ec.Request.Body
		headers = ec.Request.Headers
	})

	outReq, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, cardinalerrors.NewProxyError("building outbound request", err)
	}
	outReq.Host = origin.Host

	for name, values := range headers {
		for _, v := range values {
			outReq.Header.Add(name, v)
		}
	}
	stripHopHeaders(outReq.Header)

	return outReq, nil
}

// writeFromShared writes the response currently held in shared to w and
// records the end-of-request log line (backend id, status, Location)
// and the request metrics, timed from start.
func (s *Server) writeFromShared(w http.ResponseWriter, shared *execctx.SharedExecutionContext, destinationName string, start time.Time) {
	snap := shared.Snapshot()

	header := w.Header()
	for name, values := range snap.Response.Headers {
		if name == "content-length" {
			// Outbound middleware (e.g. response compression) may have
			// changed the body size after this header was copied from
			// the upstream response; let net/http recompute it from
			// what's actually written instead of declaring a stale length.
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}

	status := snap.Response.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(snap.Response.Body)

	location := firstHeader(snap.Response.Headers, "location")
	fields := []zap.Field{
		zap.String("backend_id", destinationName),
		zap.Int("status", status),
	}
	if location != "" {
		fields = append(fields, zap.String("location", location))
	}
	s.Logger.Info("request completed", fields...)

	statusClass := statusBucket(status)
	metrics.ObserveRequest(destinationName, statusClass, time.Since(start).Seconds())
}

func firstHeader(headers map[string][]string, name string) string {
	if vs, ok := headers[strings.ToLower(name)]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

func normalizeResponseHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = v
	}
	return out
}

func stripHopHeaders(h http.Header) {
	if conn := h.Get("Connection"); conn != "" {
		for _, f := range strings.Split(conn, ",") {
			if f = strings.TrimSpace(f); f != "" {
				h.Del(f)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// rewrittenPath applies the force-path-parameter rewrite: when enabled
// and the path's first segment names the resolved destination, that
// prefix is stripped (an empty suffix becomes "/").
func rewrittenPath(path, destName string, forceParameter bool) string {
	if !forceParameter {
		return path
	}
	trimmed := strings.TrimPrefix(path, "/")
	segment := trimmed
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		segment = trimmed[:i]
	}
	if !strings.EqualFold(segment, destName) {
		return path
	}
	rest := strings.TrimPrefix(path, "/"+segment)
	if rest == "" {
		return "/"
	}
	return rest
}

// parseOrigin parses a destination's configured URL, defaulting the
// scheme to http and the port to 80/443. net.JoinHostPort re-brackets an
// IPv6 literal automatically, satisfying the "IPv6 literals preserve
// brackets" requirement without special-casing it here.
func parseOrigin(raw string) (*url.URL, error) {
	withScheme := raw
	if !strings.Contains(raw, "://") {
		withScheme = "http://" + raw
	}
	u, err := url.Parse(withScheme)
	if err != nil {
		return nil, cardinalerrors.NewProxyError("parsing destination origin "+raw, err)
	}
	if u.Hostname() == "" {
		return nil, cardinalerrors.NewProxyError("destination origin missing host: "+raw, nil)
	}
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u, nil
}
