package evproc

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprOption configures an expression predicate.
type ExprOption func(*exprConfig)

type exprConfig struct {
	env     any
	onError func(source string, err error)
}

// WithExprEnv sets the value used to type-check the expression at compile
// time. By default the zero value of the event type is used when it is a
// struct, so unknown field names fail to compile. Map events are checked at
// run time unless an env is given.
func WithExprEnv(env any) ExprOption {
	return func(c *exprConfig) {
		c.env = env
	}
}

// OnExprError sets a callback invoked when an expression fails at run time
// (missing field, wrong type, ...). The predicate reports false in that case.
func OnExprError(fn func(source string, err error)) ExprOption {
	return func(c *exprConfig) {
		c.onError = fn
	}
}

// Expr compiles a boolean expr-lang expression into a Predicate. The event
// is the expression environment, so struct fields and map keys are
// addressable by name:
//
//	isStart, err := evproc.Expr[map[string]any](`update_type == "message_created" && message.text == "/start"`)
//
// The expression is compiled once; evaluation errors make the predicate
// false rather than aborting dispatch.
func Expr[E any](source string, opts ...ExprOption) (Predicate[E], error) {
	var cfg exprConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	compileOpts := []expr.Option{expr.AsBool()}
	if cfg.env == nil {
		var zero E
		if typedEnv(reflect.TypeOf(&zero).Elem()) {
			cfg.env = zero
		}
	}
	if cfg.env != nil {
		compileOpts = append(compileOpts, expr.Env(cfg.env))
	}

	program, err := expr.Compile(source, compileOpts...)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", source, err)
	}

	return func(ev E) bool {
		return runBool(program, source, ev, cfg.onError)
	}, nil
}

// MustExpr is like Expr but panics if the expression does not compile.
// Intended for package-level registry declarations.
func MustExpr[E any](source string, opts ...ExprOption) Predicate[E] {
	p, err := Expr[E](source, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func runBool(program *vm.Program, source string, env any, onError func(string, error)) bool {
	out, err := expr.Run(program, env)
	if err != nil {
		if onError != nil {
			onError(source, err)
		}
		return false
	}
	b, ok := out.(bool)
	if !ok {
		if onError != nil {
			onError(source, fmt.Errorf("expression %q returned %T, want bool", source, out))
		}
		return false
	}
	return b
}

func typedEnv(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
