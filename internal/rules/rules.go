// Package rules builds event processors from declarative YAML rule files.
//
// A rules file lists handlers in dispatch order. Each rule is either
// unconditional (always: true) or guarded by a list of clauses, where a
// clause is a list of expr-lang expressions that must all hold:
//
//	rules:
//	  - name: audit
//	    always: true
//	    action: scope
//	  - name: greet
//	    when:
//	      - ['update_type == "bot_started"']
//	      - ['update_type == "message_created"', 'message.text == "/start"']
//	    action: emit
//	    message: hello ${user.name}
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/evproc"
)

// Actions a rule can take when it matches.
const (
	ActionEmit  = "emit"
	ActionStop  = "stop"
	ActionScope = "scope"
	ActionFail  = "fail"
)

// ErrNoRules is returned when a rules file declares no rules.
var ErrNoRules = errors.New("no rules declared")

// Event is a decoded JSON event.
type Event = map[string]any

// File is a parsed rules file.
type File struct {
	Rules []Rule `yaml:"rules"`
}

// Rule declares one handler.
type Rule struct {
	Name    string     `yaml:"name"`
	Always  bool       `yaml:"always,omitempty"`
	When    [][]string `yaml:"when,omitempty"`
	Action  string     `yaml:"action"`
	Message string     `yaml:"message,omitempty"`
}

// Load reads and parses the rules file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a rules file. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRules
		}
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, ErrNoRules
	}
	return &f, nil
}

// Compile turns the rules into a registry. Every problem is reported: bad
// actions, expressions that do not compile, and declaration errors such as
// duplicate names or a rule that is both unconditional and guarded.
func Compile(f *File) (*evproc.Registry[*Runner, Event], error) {
	var errs error
	b := evproc.NewBuilder[*Runner, Event]()

	for i, rule := range f.Rules {
		name := rule.Name
		if name == "" {
			name = fmt.Sprintf("rule[%d]", i)
			errs = multierror.Append(errs, fmt.Errorf("%s: missing name", name))
		}
		if !validAction(rule.Action) {
			errs = multierror.Append(errs, fmt.Errorf("rule %q: unknown action %q", name, rule.Action))
			continue
		}

		annotations, err := annotate(rule)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rule %q: %w", name, err))
			continue
		}
		b.Handle(name, handlerFor(name, rule), annotations...)
	}

	reg, err := b.Build()
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs != nil {
		return nil, errs
	}
	return reg, nil
}

// annotate maps a rule's conditions onto builder annotations. Each clause
// becomes one When annotation; the builder checks the combination.
func annotate(rule Rule) ([]evproc.Annotation[Event], error) {
	var annotations []evproc.Annotation[Event]
	if rule.Always {
		annotations = append(annotations, evproc.Always[Event]())
	}
	for _, clause := range rule.When {
		preds := make([]evproc.Predicate[Event], 0, len(clause))
		for _, source := range clause {
			p, err := evproc.Expr[Event](source)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		annotations = append(annotations, evproc.When(preds...))
	}
	return annotations, nil
}

func validAction(action string) bool {
	switch action {
	case ActionEmit, ActionStop, ActionScope, ActionFail:
		return true
	}
	return false
}
