package evproc

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// Declaration errors reported by Builder.Build.
var (
	// ErrMixedAnnotations is returned when a handler is annotated with Always
	// and with any other annotation.
	ErrMixedAnnotations = errors.New("unconditional annotation mixed with other annotations")

	// ErrNoAnnotations is returned when Handle is called without annotations.
	ErrNoAnnotations = errors.New("handler has no annotations")

	// ErrDuplicateHandler is returned when two handlers share a name.
	ErrDuplicateHandler = errors.New("duplicate handler name")

	// ErrNilMethod is returned when Handle is given a nil method.
	ErrNilMethod = errors.New("nil handler method")

	// ErrSealed is returned when Handle is called after Build.
	ErrSealed = errors.New("registry already built")
)

// DeclarationError reports a handler declaration that violates the
// registration contract. It prevents the registry from being built.
type DeclarationError struct {
	Handler string
	Err     error
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("declare handler %q: %v", e.Handler, e.Err)
}

func (e *DeclarationError) Unwrap() error { return e.Err }

// Method is a handler bound to a processor type P and event type E. Go
// method expressions have exactly this shape, so a method declared as
//
//	func (b *Bot) OnStart(ctx context.Context, ev Event) (evproc.Result, error)
//
// is registered as (*Bot).OnStart and called with the owning instance.
type Method[P, E any] func(p P, ctx context.Context, ev E) (Result, error)

// Annotation marks a handler method as unconditional or adds one predicate
// clause to it. Annotations passed to Handle read top to bottom like stacked
// decorators.
type Annotation[E any] struct {
	always bool
	clause Clause[E]
}

// Always marks a handler as unconditional: it runs for every event that
// reaches it. It cannot be combined with other annotations on the same
// handler.
func Always[E any]() Annotation[E] {
	return Annotation[E]{always: true}
}

// When adds one AND clause to a handler: the handler matches when all of ps
// hold. Multiple When annotations on a handler are OR-ed, in the order they
// are given. When with no predicates is the same as Always.
func When[E any](ps ...Predicate[E]) Annotation[E] {
	if len(ps) == 0 {
		return Always[E]()
	}
	return Annotation[E]{clause: slices.Clone(Clause[E](ps))}
}

// Declaration is one registered handler: its name, its predicate group (nil
// for unconditional handlers) and its method.
type Declaration[P, E any] struct {
	Name   string
	Group  *Group[E]
	Method Method[P, E]
}

// Registry is the ordered, immutable list of handler declarations for one
// processor type. Build it once, typically in a package-level variable, and
// share it between all processors of that type. It is safe for concurrent
// use.
type Registry[P, E any] struct {
	decls []Declaration[P, E]
}

// Len returns the number of declarations.
func (r *Registry[P, E]) Len() int {
	return len(r.decls)
}

// Names returns the handler names in dispatch order.
func (r *Registry[P, E]) Names() []string {
	names := make([]string, len(r.decls))
	for i, d := range r.decls {
		names[i] = d.Name
	}
	return names
}

// Declarations returns a copy of the declarations in dispatch order.
func (r *Registry[P, E]) Declarations() []Declaration[P, E] {
	return slices.Clone(r.decls)
}

// pending is a handler as accumulated by the builder, before finalization.
type pending[P, E any] struct {
	name        string
	method      Method[P, E]
	annotated   bool
	conditional bool
	clauses     []Clause[E] // innermost first
}

// Builder collects handler declarations for a processor type. Handlers
// dispatch in the order Handle is called.
//
// Example:
//
//	var registry = func() *evproc.Registry[*Bot, Event] {
//	    b := evproc.NewBuilder[*Bot, Event]()
//	    b.Handle("start", (*Bot).OnStart,
//	        evproc.When(isBotStarted),
//	        evproc.When(isMessage, textIs("/start")),
//	    )
//	    b.Handle("echo", (*Bot).Echo, evproc.Always[Event]())
//	    return b.MustBuild()
//	}()
type Builder[P, E any] struct {
	handlers []*pending[P, E]
	names    map[string]struct{}
	errs     []error
	built    bool
}

// NewBuilder returns an empty Builder.
func NewBuilder[P, E any]() *Builder[P, E] {
	return &Builder[P, E]{names: make(map[string]struct{})}
}

// Handle declares method as a handler named name. Annotations are applied
// last to first, the way stacked decorators are, and the resulting clauses
// are put back into the order given when the registry is built.
//
// Contract violations are collected and reported by Build.
func (b *Builder[P, E]) Handle(name string, method Method[P, E], annotations ...Annotation[E]) *Builder[P, E] {
	if b.built {
		b.fail(name, ErrSealed)
		return b
	}
	if method == nil {
		b.fail(name, ErrNilMethod)
		return b
	}
	if _, dup := b.names[name]; dup {
		b.fail(name, ErrDuplicateHandler)
		return b
	}
	if len(annotations) == 0 {
		b.fail(name, ErrNoAnnotations)
		return b
	}

	h := &pending[P, E]{name: name, method: method}
	for i := len(annotations) - 1; i >= 0; i-- {
		if err := h.annotate(annotations[i]); err != nil {
			b.fail(name, err)
			return b
		}
	}

	b.names[name] = struct{}{}
	b.handlers = append(b.handlers, h)
	return b
}

func (h *pending[P, E]) annotate(a Annotation[E]) error {
	if a.always {
		if h.annotated {
			return ErrMixedAnnotations
		}
		h.annotated = true
		return nil
	}
	if h.annotated && !h.conditional {
		return ErrMixedAnnotations
	}
	h.annotated = true
	h.conditional = true
	h.clauses = append(h.clauses, a.clause)
	return nil
}

func (b *Builder[P, E]) fail(name string, err error) {
	b.errs = append(b.errs, &DeclarationError{Handler: name, Err: err})
}

// Build finalizes the registry. It fails if any Handle call violated the
// declaration contract; all violations are reported together. A Builder can
// be built only once.
func (b *Builder[P, E]) Build() (*Registry[P, E], error) {
	if b.built {
		return nil, ErrSealed
	}
	b.built = true
	if len(b.errs) > 0 {
		return nil, multierror.Append(nil, b.errs...).ErrorOrNil()
	}

	decls := make([]Declaration[P, E], 0, len(b.handlers))
	for _, h := range b.handlers {
		d := Declaration[P, E]{Name: h.name, Method: h.method}
		if h.conditional {
			clauses := slices.Clone(h.clauses)
			slices.Reverse(clauses)
			d.Group = &Group[E]{clauses: clauses}
		}
		decls = append(decls, d)
	}
	return &Registry[P, E]{decls: decls}, nil
}

// MustBuild is like Build but panics on error. Use it where the registry is
// declared at package level so that a bad declaration stops the program at
// start-up.
func (b *Builder[P, E]) MustBuild() *Registry[P, E] {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}
