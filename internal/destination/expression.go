package destination

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
)

// exprEnv is the shared CEL environment every expression matcher compiles
// against: a small declared environment of host/path/method string
// variables, grounded on caddyserver-caddy/modules/caddyhttp/celmatcher.go's
// cel.NewEnv/cel.Program pattern, stripped of Caddy's placeholder and
// module-discovery machinery since Cardinal has no equivalent.
var exprEnv = mustExprEnv()

func mustExprEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("host", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("method", cel.StringType),
		ext.Strings(),
	)
	if err != nil {
		panic("destination: building CEL environment: " + err.Error())
	}
	return env
}

// compiledExpression is the lowest-precedence matcher bucket: a compiled
// CEL program evaluated against the request's host, path, and method.
type compiledExpression struct {
	wrapper *Wrapper
	program cel.Program
}

func compileExpression(w *Wrapper, expr string) (compiledExpression, error) {
	checked, issues := exprEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return compiledExpression{}, cardinalerrors.NewLoadError(
			"compiling expression matcher for destination "+w.Config.Name, issues.Err())
	}
	if checked.OutputType() != cel.BoolType {
		return compiledExpression{}, cardinalerrors.NewLoadError(
			"expression matcher for destination "+w.Config.Name+" must evaluate to bool", nil)
	}
	prg, err := exprEnv.Program(checked)
	if err != nil {
		return compiledExpression{}, cardinalerrors.NewLoadError(
			"building expression program for destination "+w.Config.Name, err)
	}
	return compiledExpression{wrapper: w, program: prg}, nil
}

func (c compiledExpression) matches(host, path, method string) bool {
	out, _, err := c.program.Eval(map[string]interface{}{
		"host":   host,
		"path":   path,
		"method": method,
	})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
