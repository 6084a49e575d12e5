// Package policy evaluates operator-defined content rules against incoming
// messages.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/TecharoHQ/wall/internal"
	"github.com/TecharoHQ/wall/lib/config"
	"github.com/TecharoHQ/wall/lib/policy/expressions"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrMisconfiguration = errors.New("[unexpected] policy: administrator misconfiguration")
)

var ruleMatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wall_policy_rule_matches_total",
	Help: "The total number of messages rejected by each content rule",
}, []string{"rule"})

// Input is what a rule can see about a submission.
type Input struct {
	Text      string
	ClientKey string
	UserAgent string
	Header    http.Header
}

func (in *Input) Parent() cel.Activation { return nil }

func (in *Input) ResolveName(name string) (any, bool) {
	switch name {
	case "text":
		return in.Text, true
	case "length":
		return int64(utf8.RuneCountInString(in.Text)), true
	case "clientKey":
		return in.ClientKey, true
	case "userAgent":
		return in.UserAgent, true
	case "headers":
		result := make(map[string]string, len(in.Header))
		for k, v := range in.Header {
			result[k] = strings.Join(v, ",")
		}
		return result, true
	default:
		return nil, false
	}
}

// Match names the rule that rejected a submission.
type Match struct {
	Name    string
	Message string
}

func (m Match) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", m.Name),
		slog.String("message", m.Message),
	)
}

type rule struct {
	name    string
	message string
	hash    string
	program cel.Program
}

// Engine holds compiled rules in configuration order.
type Engine struct {
	rules []rule
}

// New compiles every rule. Any rule that fails to compile fails the whole
// engine.
func New(rules []config.Rule) (*Engine, error) {
	env, err := expressions.NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("%w: can't create CEL environment: %w", ErrMisconfiguration, err)
	}

	var errs []error
	result := &Engine{}

	for _, r := range rules {
		if err := r.Valid(); err != nil {
			errs = append(errs, err)
			continue
		}

		op, clauses := expressions.JoinAll, r.All
		switch {
		case r.Expression != "":
			clauses = []string{r.Expression}
		case len(r.Any) != 0:
			op, clauses = expressions.JoinAny, r.Any
		}

		program, err := expressions.Compile(env, op, clauses...)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", r.Name, err))
			continue
		}

		msg := r.Message
		if msg == "" {
			msg = "message rejected by content policy " + r.Name
		}

		result.rules = append(result.rules, rule{
			name:    r.Name,
			message: msg,
			hash:    internal.SHA256sum(string(op) + strings.Join(clauses, "\x00")),
			program: program,
		})
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("%w: %w", ErrMisconfiguration, errors.Join(errs...))
	}

	return result, nil
}

// Len is the number of compiled rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Evaluate returns the first rule that in matches, or nil.
func (e *Engine) Evaluate(ctx context.Context, in *Input) (*Match, error) {
	for _, r := range e.rules {
		result, _, err := r.program.ContextEval(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("policy: rule %q (%s) failed: %w", r.name, r.hash[:8], err)
		}

		if val, ok := result.(types.Bool); ok && bool(val) {
			ruleMatches.WithLabelValues(r.name).Inc()
			return &Match{Name: r.name, Message: r.message}, nil
		}
	}

	return nil, nil
}
