package evproc

import (
	"context"
	"reflect"
)

type resultKind uint8

const (
	kindStop resultKind = iota
	kindContinue
	kindEnter
	kindAwait
)

// Result is what a handler method hands back to the dispatch engine. It is
// one of:
//
//   - Continue: the handler ran; dispatch moves to the next handler.
//   - Stop: the handler ran; no further handler sees this event.
//   - Enter: the handler is middleware; its Scope is entered and stays open
//     until dispatch for this event ends. Dispatch always continues.
//   - Await: the handler's outcome is computed asynchronously; dispatch waits
//     for it (or for context cancellation) and continues iff it reports true.
//
// The zero Result is Stop, so a handler that returns Result{} halts
// dispatch the same way a handler returning nothing would.
type Result struct {
	kind  resultKind
	scope Scope
	await func(ctx context.Context) (bool, error)
}

// Continue lets dispatch proceed to the next handler.
func Continue() Result {
	return Result{kind: kindContinue}
}

// Stop halts dispatch for the current event.
func Stop() Result {
	return Result{kind: kindStop}
}

// Bool maps true to Continue and false to Stop.
func Bool(ok bool) Result {
	if ok {
		return Continue()
	}
	return Stop()
}

// Truthy maps an arbitrary value onto Continue or Stop. nil, false, zero
// numbers, and empty strings, slices, and maps stop dispatch; any other
// value continues it. A non-nil Scope is entered as with Enter.
//
// Strings are not parsed: Truthy("false") continues, because the string is
// non-empty.
func Truthy(v any) Result {
	switch t := v.(type) {
	case nil:
		return Stop()
	case Result:
		return t
	case Scope:
		if isNil(t) {
			return Stop()
		}
		return Enter(t)
	case bool:
		return Bool(t)
	case string:
		return Bool(t != "")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return Bool(rv.Len() > 0)
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return Bool(!rv.IsNil())
	}
	return Bool(!rv.IsZero())
}

// isNil reports whether v holds a typed nil, such as a nil *T behind an
// interface.
func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Enter marks the handler as middleware. The scope is entered immediately
// and exited, in reverse order of entry, after dispatch for the event ends.
func Enter(s Scope) Result {
	if s == nil || isNil(s) {
		return Continue()
	}
	return Result{kind: kindEnter, scope: s}
}

// Await defers the handler's outcome to fn, which runs in its own goroutine.
// The engine waits for fn or for the dispatch context to be done, whichever
// comes first. Dispatch continues iff fn returns true and no error.
//
// Example:
//
//	func (b *Bot) Notify(ctx context.Context, ev Event) (evproc.Result, error) {
//	    return evproc.Await(func(ctx context.Context) (bool, error) {
//	        return true, b.client.Send(ctx, ev.ChatID, "hi")
//	    }), nil
//	}
func Await(fn func(ctx context.Context) (bool, error)) Result {
	if fn == nil {
		return Stop()
	}
	return Result{kind: kindAwait, await: fn}
}

// Continues reports whether the result lets dispatch move on without
// further work. Await results report false until resolved by the engine.
func (r Result) Continues() bool {
	return r.kind == kindContinue || r.kind == kindEnter
}

// Scope returns the scope carried by an Enter result, or nil.
func (r Result) Scope() Scope {
	return r.scope
}

func (r Result) String() string {
	switch r.kind {
	case kindContinue:
		return "continue"
	case kindEnter:
		return "enter"
	case kindAwait:
		return "await"
	default:
		return "stop"
	}
}
