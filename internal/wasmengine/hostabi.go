package wasmengine

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/cardinal-rs/cardinal/internal/execctx"
)

type hostCtxKey struct{}

// hostState is threaded through a single guest call via context.Context,
// standing in for the "instance's function environment": wazero host
// functions receive the caller's api.Module directly, so only the
// execution context and direction need riding along on the Go context.
type hostState struct {
	shared    *execctx.SharedExecutionContext
	outbound  bool
	pluginTag string
	logger    *zap.Logger
}

func withHostState(ctx context.Context, s *hostState) context.Context {
	return context.WithValue(ctx, hostCtxKey{}, s)
}

func hostStateFrom(ctx context.Context) *hostState {
	s, _ := ctx.Value(hostCtxKey{}).(*hostState)
	return s
}

// buildHostModule registers every env import the plugin ABI defines.
func buildHostModule(runtime wazero.Runtime) wazero.HostModuleBuilder {
	b := runtime.NewHostModuleBuilder("env")

	b.NewFunctionBuilder().WithFunc(hostAbort).Export("abort")
	b.NewFunctionBuilder().WithFunc(hostGetHeader).Export("get_header")
	b.NewFunctionBuilder().WithFunc(hostGetQueryParam).Export("get_query_param")
	b.NewFunctionBuilder().WithFunc(hostGetReqVar).Export("get_req_var")
	b.NewFunctionBuilder().WithFunc(hostSetReqVar).Export("set_req_var")
	b.NewFunctionBuilder().WithFunc(hostSetHeader).Export("set_header")
	b.NewFunctionBuilder().WithFunc(hostSetStatus).Export("set_status")

	return b
}

func hostAbort(ctx context.Context, mod api.Module, msgPtr, filePtr, line, col uint32) {
	hs := hostStateFrom(ctx)
	if hs == nil || hs.logger == nil {
		return
	}
	msg := readCString(mod, msgPtr)
	file := readCString(mod, filePtr)
	hs.logger.Warn("wasm guest aborted",
		zap.String("plugin", hs.pluginTag),
		zap.String("message", msg),
		zap.String("file", file),
		zap.Uint32("line", line),
		zap.Uint32("col", col),
	)
}

func readCString(mod api.Module, ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	// Guests report abort() arguments as UTF-16 string pointers per the
	// AssemblyScript ABI convention; since we only log them best-effort, a
	// bounded raw read is enough without a full UTF-16 decode.
	data, ok := mod.Memory().Read(ptr, 64)
	if !ok {
		return ""
	}
	return trimNulTail(string(data))
}

func trimNulTail(s string) string {
	return strings.TrimRight(s, "\x00")
}

func hostGetHeader(ctx context.Context, mod api.Module, namePtr, nameLen, outPtr, outCap uint32) int32 {
	hs := hostStateFrom(ctx)
	if hs == nil {
		return -1
	}
	name, ok := mod.Memory().Read(namePtr, nameLen)
	if !ok {
		return -1
	}

	value, found := hs.shared.Header(string(name))
	if !found {
		return -1
	}
	return writeCapped(mod, outPtr, outCap, value)
}

func hostGetQueryParam(ctx context.Context, mod api.Module, keyPtr, keyLen, outPtr, outCap uint32) int32 {
	hs := hostStateFrom(ctx)
	if hs == nil {
		return -1
	}
	key, ok := mod.Memory().Read(keyPtr, keyLen)
	if !ok {
		return -1
	}

	value, found := hs.shared.QueryParam(strings.ToLower(string(key)))
	if !found {
		return -1
	}
	return writeCapped(mod, outPtr, outCap, value)
}

func hostGetReqVar(ctx context.Context, mod api.Module, namePtr, nameLen, outPtr, outCap uint32) int32 {
	hs := hostStateFrom(ctx)
	if hs == nil {
		return -1
	}
	name, ok := mod.Memory().Read(namePtr, nameLen)
	if !ok {
		return -1
	}

	value, found := hs.shared.ReqVar(strings.ToLower(string(name)))
	if !found {
		return -1
	}
	return writeCapped(mod, outPtr, outCap, value)
}

func hostSetReqVar(ctx context.Context, mod api.Module, namePtr, nameLen, valPtr, valLen uint32) {
	hs := hostStateFrom(ctx)
	if hs == nil {
		return
	}
	name, ok := mod.Memory().Read(namePtr, nameLen)
	if !ok {
		return
	}
	val, ok := mod.Memory().Read(valPtr, valLen)
	if !ok {
		return
	}
	hs.shared.SetReqVar(strings.ToLower(string(name)), string(val))
}

func hostSetHeader(ctx context.Context, mod api.Module, namePtr, nameLen, valPtr, valLen uint32) {
	hs := hostStateFrom(ctx)
	if hs == nil || !hs.outbound {
		return
	}
	name, ok := mod.Memory().Read(namePtr, nameLen)
	if !ok || len(name) == 0 {
		return
	}
	val, ok := mod.Memory().Read(valPtr, valLen)
	if !ok {
		return
	}
	hs.shared.SetHeader(string(name), string(val))
}

func hostSetStatus(ctx context.Context, mod api.Module, code int32) {
	hs := hostStateFrom(ctx)
	if hs == nil || !hs.outbound {
		return
	}
	hs.shared.SetStatus(int(code))
}

func writeCapped(mod api.Module, outPtr, outCap uint32, value string) int32 {
	data := truncateTo([]byte(value), outCap)
	if !mod.Memory().Write(outPtr, data) {
		return -1
	}
	return int32(len(data))
}

func truncateTo(data []byte, cap uint32) []byte {
	if uint32(len(data)) > cap {
		return data[:cap]
	}
	return data
}
