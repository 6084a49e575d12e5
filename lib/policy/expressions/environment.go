// Package expressions holds the CEL environment content rules are compiled in.
package expressions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

var (
	ErrNoExpressions = errors.New("expressions: cannot join zero expressions")
	ErrCantCompile   = errors.New("expressions: can't compile one expression")
	ErrNotBool       = errors.New("expressions: expression does not return a bool")
)

// NewEnvironment creates a new CEL environment, this is the set of
// variables and functions that are passed into the CEL scope so that
// the wall can fail loudly at startup when a rule is invalid instead of
// blowing up at runtime.
func NewEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(
			ext.StringsLocale("en_US"),
			ext.StringsValidateFormatCalls(true),
		),

		// default all timestamps to UTC
		cel.DefaultUTCTimeZone(true),

		// Variables exposed to CEL programs:
		cel.Variable("text", cel.StringType),
		cel.Variable("length", cel.IntType),
		cel.Variable("clientKey", cel.StringType),
		cel.Variable("userAgent", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
	)
}

// Joiner combines clauses with && or ||.
type Joiner string

const (
	JoinAll Joiner = "&&"
	JoinAny Joiner = "||"
)

// Compile type-checks the clauses joined by op and emits an optimized
// program that must return a bool.
func Compile(env *cel.Env, op Joiner, clauses ...string) (cel.Program, error) {
	if len(clauses) == 0 {
		return nil, ErrNoExpressions
	}

	var errs []error
	parts := make([]string, 0, len(clauses))

	for _, clause := range clauses {
		if _, iss := env.Compile(clause); iss != nil && iss.Err() != nil {
			errs = append(errs, fmt.Errorf("%w: %q gave: %w", ErrCantCompile, clause, iss.Err()))
			continue
		}
		parts = append(parts, "( "+clause+" )")
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	ast, iss := env.Compile(strings.Join(parts, " "+string(op)+" "))
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w, got %s", ErrNotBool, ast.OutputType())
	}

	return env.Program(
		ast,
		cel.EvalOptions(
			// optimize regular expressions right now instead of on the fly
			cel.OptOptimize,
		),
	)
}
