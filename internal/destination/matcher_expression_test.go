package destination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinal-rs/cardinal/internal/cardinalconfig"
)

func TestExpressionMatchesOnMethodAndPath(t *testing.T) {
	dest := destWithMatch("admin_api", cardinalconfig.DestinationMatch{
		Expression: `method == "POST" && path.startsWith("/admin")`,
	})
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	req := buildRequest(t, "any.example.com", "/admin/users")
	req.Method = "POST"
	resolved := idx.Resolve(req)
	require.NotNil(t, resolved)
	assert.Equal(t, "admin_api", resolved.Config.Name)
}

func TestExpressionDoesNotMatchWhenFalse(t *testing.T) {
	dest := destWithMatch("admin_api", cardinalconfig.DestinationMatch{
		Expression: `method == "POST" && path.startsWith("/admin")`,
	})
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	req := buildRequest(t, "any.example.com", "/admin/users")
	req.Method = "GET"
	assert.Nil(t, idx.Resolve(req))
}

func TestExpressionIsLowestPrecedence(t *testing.T) {
	hostDest := destWithMatch("api", cardinalconfig.DestinationMatch{Host: literal("api.example.com")})
	exprDest := destWithMatch("catchall", cardinalconfig.DestinationMatch{Expression: `true`})

	idx, err := NewMatcherIndex([]*Wrapper{exprDest, hostDest})
	require.NoError(t, err)

	req := buildRequest(t, "api.example.com", "/anything")
	resolved := idx.Resolve(req)
	require.NotNil(t, resolved)
	assert.Equal(t, "api", resolved.Config.Name, "exact host match must win over the expression bucket")

	other := idx.Resolve(buildRequest(t, "other.example.com", "/anything"))
	require.NotNil(t, other)
	assert.Equal(t, "catchall", other.Config.Name)
}

func TestExpressionMatchesOnHost(t *testing.T) {
	dest := destWithMatch("internal", cardinalconfig.DestinationMatch{
		Expression: `host.endsWith(".internal.example.com")`,
	})
	idx, err := NewMatcherIndex([]*Wrapper{dest})
	require.NoError(t, err)

	resolved := idx.Resolve(buildRequest(t, "svc.internal.example.com", "/"))
	require.NotNil(t, resolved)
	assert.Equal(t, "internal", resolved.Config.Name)
}

func TestInvalidExpressionFailsAtLoadTime(t *testing.T) {
	dest := destWithMatch("broken", cardinalconfig.DestinationMatch{
		Expression: `this is not valid cel`,
	})
	_, err := NewMatcherIndex([]*Wrapper{dest})
	assert.Error(t, err)
}

func TestNonBooleanExpressionFailsAtLoadTime(t *testing.T) {
	dest := destWithMatch("broken", cardinalconfig.DestinationMatch{
		Expression: `path`,
	})
	_, err := NewMatcherIndex([]*Wrapper{dest})
	assert.Error(t, err)
}
