package builtin

import (
	"bytes"
	"context"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/cardinal-rs/cardinal/internal/destination"
	"github.com/cardinal-rs/cardinal/internal/execctx"
)

// ResponseCompressionName is the built-in's registry name.
const ResponseCompressionName = "response_compression"

// ResponseCompression is a built-in outbound handler not present in the
// original source: when the request declared gzip acceptance and the
// response isn't already encoded, it gzips the buffered response body
// and stamps Content-Encoding, exercising klauspost/compress the way the
// rest of the example pack reaches for it over stdlib compress/gzip.
type ResponseCompression struct{}

func (ResponseCompression) OnResponse(ctx context.Context, shared *execctx.SharedExecutionContext, dest *destination.Wrapper) error {
	var acceptsGzip bool
	shared.View(func(ec *execctx.ExecutionContext) {
		for _, v := range ec.Request.Headers["accept-encoding"] {
			if strings.Contains(strings.ToLower(v), "gzip") {
				acceptsGzip = true
			}
		}
	})
	if !acceptsGzip {
		return nil
	}

	var alreadyEncoded bool
	var body []byte
	shared.View(func(ec *execctx.ExecutionContext) {
		if len(ec.Response.Headers["content-encoding"]) > 0 {
			alreadyEncoded = true
		}
		body = ec.Response.Body
	})
	if alreadyEncoded || len(body) == 0 {
		return nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	shared.Mutate(func(ec *execctx.ExecutionContext) {
		ec.Response.Body = buf.Bytes()
		ec.Response.Headers["content-encoding"] = []string{"gzip"}
	})
	return nil
}
