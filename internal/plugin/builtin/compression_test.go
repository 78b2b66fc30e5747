package builtin_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinal-rs/cardinal/internal/execctx"
	"github.com/cardinal-rs/cardinal/internal/plugin/builtin"
)

func TestResponseCompressionGzipsWhenAccepted(t *testing.T) {
	shared := execctx.NewShared("GET", "/", map[string][]string{"Accept-Encoding": {"gzip, deflate"}}, "", nil)
	shared.Mutate(func(ec *execctx.ExecutionContext) {
		ec.Response.Body = []byte("hello world")
	})

	err := builtin.ResponseCompression{}.OnResponse(context.Background(), shared, nil)
	require.NoError(t, err)

	snap := shared.Snapshot()
	assert.Equal(t, []string{"gzip"}, snap.Response.Headers["content-encoding"])

	r, err := gzip.NewReader(bytes.NewReader(snap.Response.Body))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
}

func TestResponseCompressionSkipsWithoutAcceptEncoding(t *testing.T) {
	shared := execctx.NewShared("GET", "/", map[string][]string{}, "", nil)
	shared.Mutate(func(ec *execctx.ExecutionContext) {
		ec.Response.Body = []byte("hello world")
	})

	err := builtin.ResponseCompression{}.OnResponse(context.Background(), shared, nil)
	require.NoError(t, err)

	snap := shared.Snapshot()
	assert.Nil(t, snap.Response.Headers["content-encoding"])
	assert.Equal(t, "hello world", string(snap.Response.Body))
}
