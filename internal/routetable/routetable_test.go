package routetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidReturnsTrueForRegisteredRoute(t *testing.T) {
	table := New()
	require.NoError(t, table.Add("GET", "/status"))

	ok, params := table.Valid("GET", "/status")
	assert.True(t, ok)
	assert.Empty(t, params)
}

func TestValidExtractsPathParams(t *testing.T) {
	table := New()
	require.NoError(t, table.Add("GET", "/items/{id}/detail"))

	ok, params := table.Valid("GET", "/items/123/detail")
	require.True(t, ok)
	assert.Equal(t, "123", params["id"])
}

func TestValidReturnsFalseForUnregisteredRoute(t *testing.T) {
	table := New()
	require.NoError(t, table.Add("POST", "/submit"))

	ok, _ := table.Valid("GET", "/submit")
	assert.False(t, ok)

	ok, _ = table.Valid("POST", "/unknown")
	assert.False(t, ok)
}

func TestValidReturnsFalseWhenExtraSegments(t *testing.T) {
	table := New()
	require.NoError(t, table.Add("GET", "/items/{id}"))

	ok, _ := table.Valid("GET", "/items/123/extra")
	assert.False(t, ok)
}

func TestValidIsFalseWhenMethodDiffersInCase(t *testing.T) {
	table := New()
	require.NoError(t, table.Add("GET", "/status"))

	ok, _ := table.Valid("get", "/status")
	assert.False(t, ok)
}

func TestAddDuplicateRouteReturnsError(t *testing.T) {
	table := New()
	require.NoError(t, table.Add("GET", "/status"))

	err := table.Add("GET", "/status")
	assert.Error(t, err)
}

func TestAddInvalidPatternReturnsErrorInsteadOfPanicking(t *testing.T) {
	table := New()

	err := table.Add("NOTAMETHOD", "/status")
	assert.Error(t, err)
}
