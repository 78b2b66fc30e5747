package destination

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinal-rs/cardinal/internal/cardinalconfig"
)

func buildRequest(t *testing.T, host, path string) *http.Request {
	t.Helper()
	u, err := url.Parse(path)
	require.NoError(t, err)
	return &http.Request{Host: host, URL: u, Header: http.Header{}}
}

func destWithMatch(name string, matches ...cardinalconfig.DestinationMatch) *Wrapper {
	w, err := NewWrapper(&cardinalconfig.Destination{Name: name, Match: matches})
	if err != nil {
		panic(err)
	}
	return w
}

func literal(s string) *cardinalconfig.MatchValue {
	return &cardinalconfig.MatchValue{Literal: s}
}

func regex(s string) *cardinalconfig.MatchValue {
	m := &cardinalconfig.MatchValue{Regex: s}
	// force regex flag via UnmarshalTOML path equivalent
	_ = m.UnmarshalTOML(map[string]interface{}{"regex": s})
	return m
}

func TestMatchesExactHost(t *testing.T) {
	dest := destWithMatch("customer_service", cardinalconfig.DestinationMatch{
		Host: literal("api.example.com"),
	})
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	req := buildRequest(t, "API.EXAMPLE.com", "/v1/customers")
	resolved := idx.Resolve(req)
	require.NotNil(t, resolved)
	assert.Equal(t, "customer_service", resolved.Config.Name)
}

func TestMatchesHostRegex(t *testing.T) {
	dest := destWithMatch("billing", cardinalconfig.DestinationMatch{
		Host: regex(`^api\.(eu|us)\.example\.com$`),
	})
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	req := buildRequest(t, "api.eu.example.com", "/billing")
	resolved := idx.Resolve(req)
	require.NotNil(t, resolved)
	assert.Equal(t, "billing", resolved.Config.Name)
}

func TestSupportsMultipleMatchEntriesPerDestination(t *testing.T) {
	dest := destWithMatch("api",
		cardinalconfig.DestinationMatch{Host: literal("api.example.com"), PathPrefix: literal("/billing")},
		cardinalconfig.DestinationMatch{Host: literal("api.example.com"), PathPrefix: literal("/support")},
	)
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	billing := idx.Resolve(buildRequest(t, "api.example.com", "/billing/payments"))
	require.NotNil(t, billing)
	assert.Equal(t, "api", billing.Config.Name)

	support := idx.Resolve(buildRequest(t, "api.example.com", "/support/chat"))
	require.NotNil(t, support)
	assert.Equal(t, "api", support.Config.Name)

	missing := idx.Resolve(buildRequest(t, "api.example.com", "/reports"))
	assert.Nil(t, missing)
}

func TestExactHostPrioritizedBeforeRegex(t *testing.T) {
	dest := destWithMatch("api",
		cardinalconfig.DestinationMatch{Host: literal("api.example.com"), PathPrefix: literal("/billing")},
		cardinalconfig.DestinationMatch{Host: regex(`^api\..+`), PathPrefix: literal("/regex")},
	)
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	exact := idx.Resolve(buildRequest(t, "api.example.com", "/billing/invoices"))
	require.NotNil(t, exact)

	viaRegex := idx.Resolve(buildRequest(t, "api.example.com", "/regex/search"))
	require.NotNil(t, viaRegex)
}

func TestMatchesPathPrefixHostless(t *testing.T) {
	dest := destWithMatch("helpdesk", cardinalconfig.DestinationMatch{PathPrefix: literal("/helpdesk")})
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	resolved := idx.Resolve(buildRequest(t, "any.example.com", "/helpdesk/ticket"))
	require.NotNil(t, resolved)
	assert.Equal(t, "helpdesk", resolved.Config.Name)
}

func TestMatchesPathRegex(t *testing.T) {
	dest := destWithMatch("reports", cardinalconfig.DestinationMatch{PathPrefix: regex(`^/reports/(daily|weekly)`)})
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	resolved := idx.Resolve(buildRequest(t, "other.example.com", "/reports/daily/summary"))
	require.NotNil(t, resolved)
	assert.Equal(t, "reports", resolved.Config.Name)
}

func TestRespectsPathExact(t *testing.T) {
	dest := destWithMatch("status", cardinalconfig.DestinationMatch{Host: literal("status.example.com"), PathExact: "/healthz"})
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	assert.NotNil(t, idx.Resolve(buildRequest(t, "status.example.com", "/healthz")))
	assert.Nil(t, idx.Resolve(buildRequest(t, "status.example.com", "/healthz/extra")))
}

func TestHostPriorityBeforeHostless(t *testing.T) {
	hostDest := destWithMatch("api", cardinalconfig.DestinationMatch{Host: literal("api.example.com")})
	hostless := destWithMatch("fallback", cardinalconfig.DestinationMatch{})

	idx, err := NewMatcherIndex([]*Wrapper{hostless, hostDest})
	require.NoError(t, err)

	resolved := idx.Resolve(buildRequest(t, "api.example.com", "/anything"))
	require.NotNil(t, resolved)
	assert.Equal(t, "api", resolved.Config.Name)
}
