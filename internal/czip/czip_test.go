package czip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinal-rs/cardinal/internal/czip"
)

func TestRoundTripSerialization(t *testing.T) {
	config := map[string]interface{}{"title": "Example"}
	plugins := map[string][]byte{
		"logger":  {0xAA, 0xBB, 0xCC},
		"metrics": {0x01, 0x02},
	}

	archive := &czip.Archive{Config: config, Plugins: plugins}
	bytes, err := czip.Encode(archive)
	require.NoError(t, err)

	decoded, err := czip.Decode(bytes)
	require.NoError(t, err)

	assert.Equal(t, "Example", decoded.Config["title"])
	assert.Equal(t, plugins, decoded.Plugins)
}

func TestRoundTripWithNoPlugins(t *testing.T) {
	archive := czip.New(map[string]interface{}{"title": "Example"})
	bytes, err := czip.Encode(archive)
	require.NoError(t, err)

	decoded, err := czip.Decode(bytes)
	require.NoError(t, err)
	assert.Empty(t, decoded.Plugins)
}

func TestTruncatedPayloadErrors(t *testing.T) {
	data := []byte{czip.MagicV1, 0x04, 0x00, 0x00, 0x00, '{', '}'}

	_, err := czip.Decode(data)
	require.Error(t, err)

	var czErr *czip.Error
	require.ErrorAs(t, err, &czErr)
	assert.Equal(t, czip.ErrUnexpectedEOF, czErr.Kind)
	assert.Equal(t, "config bytes", czErr.Label)
}

func TestTrailingDataIsRejected(t *testing.T) {
	archive := czip.New(map[string]interface{}{"title": "Example"})
	data, err := czip.Encode(archive)
	require.NoError(t, err)
	data = append(data, 0xFF)

	_, err = czip.Decode(data)
	require.Error(t, err)

	var czErr *czip.Error
	require.ErrorAs(t, err, &czErr)
	assert.Equal(t, czip.ErrTrailingData, czErr.Kind)
	assert.Equal(t, 1, czErr.TrailingBytes)
}

func TestInvalidMagicIsRejected(t *testing.T) {
	_, err := czip.Decode([]byte{0x09, 0x00})

	var czErr *czip.Error
	require.ErrorAs(t, err, &czErr)
	assert.Equal(t, czip.ErrInvalidMagic, czErr.Kind)
	assert.Equal(t, byte(0x09), czErr.Magic)
}

func TestEmptyInputIsUnexpectedEOF(t *testing.T) {
	_, err := czip.Decode(nil)

	var czErr *czip.Error
	require.ErrorAs(t, err, &czErr)
	assert.Equal(t, czip.ErrUnexpectedEOF, czErr.Kind)
	assert.Equal(t, "magic identifier", czErr.Label)
}

func TestPluginNamesSortedOnEncode(t *testing.T) {
	archive := czip.New(map[string]interface{}{})
	archive.AddPlugin("zeta", []byte{1})
	archive.AddPlugin("alpha", []byte{2})

	data, err := czip.Encode(archive)
	require.NoError(t, err)

	decoded, err := czip.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, decoded.Plugins["alpha"])
	assert.Equal(t, []byte{1}, decoded.Plugins["zeta"])
}
