package evproc

import (
	"context"
	"time"
)

// OnStartFunc is called once per dispatch, before the first handler is
// considered. Use this to enrich the context with logging fields or trace
// spans. The returned context is used for the rest of the dispatch.
type OnStartFunc func(ctx context.Context) context.Context

// OnSkipFunc is called when a handler's predicate group does not match the
// event.
type OnSkipFunc func(ctx context.Context, handler string)

// OnDispatchFunc is called just before a matched handler executes.
type OnDispatchFunc func(ctx context.Context, handler string)

// OnSuccessFunc is called after a handler returns without error. result is
// the handler's resolved result.
type OnSuccessFunc func(ctx context.Context, handler string, result Result, duration time.Duration)

// OnFailureFunc is called after a handler returns an error.
type OnFailureFunc func(ctx context.Context, handler string, err error, duration time.Duration)

// OnStopFunc is called when a handler halts dispatch for the event.
type OnStopFunc func(ctx context.Context, handler string)

// OnEnterFunc is called after a middleware scope has been entered.
type OnEnterFunc func(ctx context.Context, handler string)

// OnExitFunc is called after a middleware scope has exited. err is the error
// still propagating after the exit, nil if none.
type OnExitFunc func(ctx context.Context, handler string, err error)

// OnCompleteFunc is called once per dispatch, after every scope has exited.
// err is the error Process returns.
type OnCompleteFunc func(ctx context.Context, err error, duration time.Duration)

// hooks holds all configured hook functions.
type hooks struct {
	onStart    []OnStartFunc
	onSkip     []OnSkipFunc
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
	onStop     []OnStopFunc
	onEnter    []OnEnterFunc
	onExit     []OnExitFunc
	onComplete []OnCompleteFunc
}

// WithOnStart adds a hook called at the start of every dispatch.
// Multiple hooks are called in order, with context chaining through each.
//
// Example:
//
//	evproc.WithOnStart(func(ctx context.Context) context.Context {
//	    ctx, _ = tracer.Start(ctx, "process-event")
//	    return ctx
//	})
func WithOnStart(fn OnStartFunc) Option {
	return func(o *options) {
		o.hooks.onStart = append(o.hooks.onStart, fn)
	}
}

// WithOnSkip adds a hook called when a handler's predicates do not match.
// Multiple hooks are called in order.
func WithOnSkip(fn OnSkipFunc) Option {
	return func(o *options) {
		o.hooks.onSkip = append(o.hooks.onSkip, fn)
	}
}

// WithOnDispatch adds a hook called just before a matched handler executes.
// Multiple hooks are called in order.
//
// Example:
//
//	evproc.WithOnDispatch(func(ctx context.Context, handler string) {
//	    logger.DebugContext(ctx, "dispatching event", "handler", handler)
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(o *options) {
		o.hooks.onDispatch = append(o.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after a handler completes successfully.
// Multiple hooks are called in order.
//
// Example:
//
//	evproc.WithOnSuccess(func(ctx context.Context, handler string, r evproc.Result, d time.Duration) {
//	    metrics.Timing("evproc.handler", d, "handler:"+handler)
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(o *options) {
		o.hooks.onSuccess = append(o.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after a handler fails.
// Multiple hooks are called in order.
//
// Example:
//
//	evproc.WithOnFailure(func(ctx context.Context, handler string, err error, d time.Duration) {
//	    metrics.Incr("evproc.failure", "handler:"+handler)
//	})
func WithOnFailure(fn OnFailureFunc) Option {
	return func(o *options) {
		o.hooks.onFailure = append(o.hooks.onFailure, fn)
	}
}

// WithOnStop adds a hook called when a handler halts dispatch.
// Multiple hooks are called in order.
func WithOnStop(fn OnStopFunc) Option {
	return func(o *options) {
		o.hooks.onStop = append(o.hooks.onStop, fn)
	}
}

// WithOnEnter adds a hook called after a middleware scope is entered.
// Multiple hooks are called in order.
func WithOnEnter(fn OnEnterFunc) Option {
	return func(o *options) {
		o.hooks.onEnter = append(o.hooks.onEnter, fn)
	}
}

// WithOnExit adds a hook called after a middleware scope exits.
// Multiple hooks are called in order.
func WithOnExit(fn OnExitFunc) Option {
	return func(o *options) {
		o.hooks.onExit = append(o.hooks.onExit, fn)
	}
}

// WithOnComplete adds a hook called once a dispatch has fully unwound.
// Multiple hooks are called in order.
//
// Example:
//
//	evproc.WithOnComplete(func(ctx context.Context, err error, d time.Duration) {
//	    metrics.Timing("evproc.dispatch", d)
//	})
func WithOnComplete(fn OnCompleteFunc) Option {
	return func(o *options) {
		o.hooks.onComplete = append(o.hooks.onComplete, fn)
	}
}

func (h *hooks) start(ctx context.Context) context.Context {
	for _, fn := range h.onStart {
		ctx = fn(ctx)
	}
	return ctx
}

func (h *hooks) skip(ctx context.Context, handler string) {
	for _, fn := range h.onSkip {
		fn(ctx, handler)
	}
}

func (h *hooks) dispatch(ctx context.Context, handler string) {
	for _, fn := range h.onDispatch {
		fn(ctx, handler)
	}
}

func (h *hooks) success(ctx context.Context, handler string, r Result, d time.Duration) {
	for _, fn := range h.onSuccess {
		fn(ctx, handler, r, d)
	}
}

func (h *hooks) failure(ctx context.Context, handler string, err error, d time.Duration) {
	for _, fn := range h.onFailure {
		fn(ctx, handler, err, d)
	}
}

func (h *hooks) stop(ctx context.Context, handler string) {
	for _, fn := range h.onStop {
		fn(ctx, handler)
	}
}

func (h *hooks) enter(ctx context.Context, handler string) {
	for _, fn := range h.onEnter {
		fn(ctx, handler)
	}
}

func (h *hooks) exit(ctx context.Context, handler string, err error) {
	for _, fn := range h.onExit {
		fn(ctx, handler, err)
	}
}

func (h *hooks) complete(ctx context.Context, err error, d time.Duration) {
	for _, fn := range h.onComplete {
		fn(ctx, err, d)
	}
}
