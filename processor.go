package evproc

import (
	"context"
	"errors"
	"time"
)

// ErrNilRegistry is returned by Process when the processor has no registry.
var ErrNilRegistry = errors.New("nil registry")

// options holds the processor configuration built from Options.
type options struct {
	hooks   hooks
	timeout time.Duration
	newID   func() string
}

// Option configures a Processor.
type Option func(*options)

// WithTimeout bounds every dispatch with a deadline. Handlers see it through
// their context; once it passes, no further handler is invoked and Process
// returns context.DeadlineExceeded after unwinding. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithIDGenerator overrides how dispatch IDs are generated. See DispatchID.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}

// Processor dispatches events to the handlers of a Registry, calling each
// handler method on instance.
//
// Usage:
//  1. Declare handlers once with a Builder and keep the Registry
//  2. Create a processor with New for each instance
//  3. Process events one at a time, or concurrently from several goroutines
//
// Processor holds no per-dispatch state, so it is safe for concurrent use as
// long as instance is. No ordering is defined between concurrent dispatches.
type Processor[P, E any] struct {
	registry *Registry[P, E]
	instance P
	opts     options
}

// New creates a Processor for instance with the handlers in registry.
//
// Example:
//
//	bot := &Bot{client: client}
//	p := evproc.New(registry, bot,
//	    evproc.WithTimeout(30*time.Second),
//	    evproc.WithLogger(slog.Default()),
//	)
func New[P, E any](registry *Registry[P, E], instance P, opts ...Option) *Processor[P, E] {
	p := &Processor[P, E]{
		registry: registry,
		instance: instance,
		opts:     options{newID: newDispatchID},
	}
	for _, opt := range opts {
		opt(&p.opts)
	}
	return p
}

// Process dispatches one event.
//
// The processing flow:
//  1. Walk the registry in declaration order
//  2. Skip handlers whose predicate group does not match the event
//  3. Call matched handlers and interpret their Result: continue, stop,
//     wait for an Await, or enter a middleware Scope
//  4. Stop at the first handler that returns Stop or an error
//  5. Exit every entered scope in reverse order, whatever ended the loop
//
// Process returns the first failure no scope suppressed: a handler error as
// returned, a scope entry error, a scope exit error, or the context error
// when the dispatch context ends first. A panic in a predicate or handler is
// re-raised after all scopes have exited, unless a scope suppresses it.
//
// Example:
//
//	// In a polling loop
//	for ev := range updates {
//	    if err := p.Process(ctx, ev); err != nil {
//	        logger.Error("process update", "error", err)
//	    }
//	}
func (p *Processor[P, E]) Process(ctx context.Context, ev E) (err error) {
	if p.registry == nil {
		return ErrNilRegistry
	}

	start := time.Now()
	ctx = withDispatchID(ctx, p.opts.newID())
	if p.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.timeout)
		defer cancel()
	}
	ctx = p.opts.hooks.start(ctx)

	st := &stack{onExit: p.opts.hooks.exit}
	defer func() {
		r := recover()
		if r == nil {
			err = st.unwind(ctx, err)
			p.opts.hooks.complete(ctx, err, time.Since(start))
			return
		}

		pe := newPanicError(r)
		err = st.unwind(ctx, pe)
		p.opts.hooks.complete(ctx, err, time.Since(start))
		if errors.Is(err, pe) {
			panic(r)
		}
	}()

	return p.run(ctx, st, ev)
}

// run walks the registry for one event. Scopes entered along the way are
// left on st for the caller to unwind.
func (p *Processor[P, E]) run(ctx context.Context, st *stack, ev E) error {
	h := &p.opts.hooks
	for _, d := range p.registry.decls {
		if !d.Group.Matches(ev) {
			h.skip(ctx, d.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		h.dispatch(ctx, d.Name)
		began := time.Now()
		r, err := d.Method(p.instance, ctx, ev)
		if err == nil && r.kind == kindAwait {
			r, err = await(ctx, r.await)
		}
		if err != nil {
			h.failure(ctx, d.Name, err, time.Since(began))
			return err
		}
		h.success(ctx, d.Name, r, time.Since(began))

		switch r.kind {
		case kindEnter:
			if err := st.enter(ctx, d.Name, r.scope); err != nil {
				return err
			}
			h.enter(ctx, d.Name)
		case kindStop:
			h.stop(ctx, d.Name)
			return nil
		}
	}
	return nil
}

type awaitOutcome struct {
	ok  bool
	err error
}

// await runs fn in its own goroutine and waits for its outcome or for ctx to
// be done. A panic inside fn is reported as a *PanicError.
func await(ctx context.Context, fn func(ctx context.Context) (bool, error)) (Result, error) {
	done := make(chan awaitOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- awaitOutcome{err: newPanicError(r)}
			}
		}()
		ok, err := fn(ctx)
		done <- awaitOutcome{ok: ok, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Stop(), out.err
		}
		return Bool(out.ok), nil
	case <-ctx.Done():
		return Stop(), ctx.Err()
	}
}
