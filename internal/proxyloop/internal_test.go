package proxyloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrittenPathStripsMatchingPrefix(t *testing.T) {
	assert.Equal(t, "/foo", rewrittenPath("/api/foo", "api", true))
	assert.Equal(t, "/", rewrittenPath("/api", "api", true))
	assert.Equal(t, "/api/foo", rewrittenPath("/api/foo", "api", false))
	assert.Equal(t, "/other/foo", rewrittenPath("/other/foo", "api", true))
}

func TestRewrittenPathIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "/foo", rewrittenPath("/API/foo", "api", true))
}

func TestParseOriginDefaultsSchemeAndPort(t *testing.T) {
	u, err := parseOrigin("example.com")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "example.com:80", u.Host)
}

func TestParseOriginDefaultsHttpsPort(t *testing.T) {
	u, err := parseOrigin("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com:443", u.Host)
}

func TestParseOriginKeepsExplicitPort(t *testing.T) {
	u, err := parseOrigin("example.com:9000")
	require.NoError(t, err)
	assert.Equal(t, "example.com:9000", u.Host)
}

func TestParseOriginPreservesIPv6Brackets(t *testing.T) {
	u, err := parseOrigin("[::1]")
	require.NoError(t, err)
	assert.Equal(t, "[::1]:80", u.Host)
}

func TestParseOriginRejectsMissingHost(t *testing.T) {
	_, err := parseOrigin("http://")
	require.Error(t, err)
}
