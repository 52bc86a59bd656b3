package rules

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/bjaus/evproc"
)

// Emission is one line of rule output.
type Emission struct {
	DispatchID string `json:"dispatch_id"`
	Rule       string `json:"rule"`
	Action     string `json:"action"`
	Message    string `json:"message,omitempty"`
}

// Runner is the processor instance for compiled rules. Matched rules
// report through its sink.
type Runner struct {
	sink func(Emission)
	now  func() time.Time
}

// NewRunner creates a Runner that hands every emission to sink.
func NewRunner(sink func(Emission)) *Runner {
	return &Runner{sink: sink, now: time.Now}
}

func (r *Runner) emit(ctx context.Context, rule, action, message string) {
	r.sink(Emission{
		DispatchID: evproc.DispatchID(ctx),
		Rule:       rule,
		Action:     action,
		Message:    message,
	})
}

func handlerFor(name string, rule Rule) evproc.Method[*Runner, Event] {
	switch rule.Action {
	case ActionEmit:
		return func(r *Runner, ctx context.Context, ev Event) (evproc.Result, error) {
			r.emit(ctx, name, ActionEmit, Render(rule.Message, ev))
			return evproc.Continue(), nil
		}
	case ActionStop:
		return func(r *Runner, ctx context.Context, ev Event) (evproc.Result, error) {
			r.emit(ctx, name, ActionStop, Render(rule.Message, ev))
			return evproc.Stop(), nil
		}
	case ActionScope:
		return func(r *Runner, ctx context.Context, ev Event) (evproc.Result, error) {
			began := r.now()
			return evproc.Enter(evproc.ScopeFunc(nil, func(ctx context.Context, err error) error {
				msg := fmt.Sprintf("elapsed %s", r.now().Sub(began))
				if err != nil {
					msg += ": " + err.Error()
				}
				r.emit(ctx, name, ActionScope, msg)
				return err
			})), nil
		}
	default:
		return func(r *Runner, ctx context.Context, ev Event) (evproc.Result, error) {
			msg := Render(rule.Message, ev)
			if msg == "" {
				msg = "rule failed"
			}
			return evproc.Stop(), fmt.Errorf("%s: %s", name, msg)
		}
	}
}

// Render expands ${path} references in msg with values from ev. Paths are
// dot-separated keys into nested objects; missing values expand to "".
func Render(msg string, ev Event) string {
	return os.Expand(msg, func(path string) string {
		return cast.ToString(Lookup(ev, path))
	})
}

// Lookup returns the value at a dot-separated path in ev, or nil.
func Lookup(ev Event, path string) any {
	var cur any = ev
	for _, key := range strings.Split(path, ".") {
		m, err := cast.ToStringMapE(cur)
		if err != nil {
			return nil
		}
		v, ok := m[key]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}
