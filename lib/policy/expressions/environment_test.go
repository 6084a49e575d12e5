package expressions

import (
	"errors"
	"testing"
)

func TestCompile(t *testing.T) {
	env, err := NewEnvironment()
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name    string
		op      Joiner
		clauses []string
		err     error
		wantErr bool
	}{
		{name: "single", op: JoinAll, clauses: []string{`length > 10`}},
		{name: "all", op: JoinAll, clauses: []string{`length > 10`, `text.contains("spam")`}},
		{name: "any", op: JoinAny, clauses: []string{`userAgent == ""`, `clientKey == "unknown"`}},
		{name: "headers", op: JoinAll, clauses: []string{`"Referer" in headers`}},
		{name: "none", op: JoinAll, err: ErrNoExpressions},
		{name: "syntax error", op: JoinAll, clauses: []string{`length >`}, err: ErrCantCompile},
		{name: "unknown variable", op: JoinAll, clauses: []string{`path == "/"`}, err: ErrCantCompile},
		{name: "not a bool", op: JoinAll, clauses: []string{`length + 1`}, err: ErrNotBool},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(env, tt.op, tt.clauses...)
			if !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
		})
	}
}
