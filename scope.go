package evproc

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/hashicorp/go-multierror"
)

// Scope is middleware with explicit enter and exit actions. A handler that
// returns Enter(scope) has the scope entered right away; handlers later in
// the registry then run inside it, and the scope is exited once dispatch for
// the event ends.
//
// Exit receives the error pending at the time the scope unwinds (nil when
// dispatch is ending cleanly) and returns the error that should keep
// propagating:
//
//   - nil suppresses the pending error
//   - the pending error, or an error wrapping it, propagates it
//   - any other error reports a failure of the exit itself
//
// Either action may block. Exit is called with a context that is not
// canceled when the dispatch context is, so teardown always gets to run.
type Scope interface {
	Enter(ctx context.Context) error
	Exit(ctx context.Context, err error) error
}

// ScopeFunc builds a Scope from an enter and an exit function. Either may be
// nil: a nil enter does nothing and a nil exit propagates the pending error.
//
// Example:
//
//	func (b *Bot) Transaction(ctx context.Context, ev Event) (evproc.Result, error) {
//	    var tx *sql.Tx
//	    return evproc.Enter(evproc.ScopeFunc(
//	        func(ctx context.Context) (err error) {
//	            tx, err = b.db.BeginTx(ctx, nil)
//	            return err
//	        },
//	        func(ctx context.Context, err error) error {
//	            if err != nil {
//	                _ = tx.Rollback()
//	                return err
//	            }
//	            return tx.Commit()
//	        },
//	    )), nil
//	}
func ScopeFunc(enter func(ctx context.Context) error, exit func(ctx context.Context, err error) error) Scope {
	return scopeFunc{enter: enter, exit: exit}
}

type scopeFunc struct {
	enter func(ctx context.Context) error
	exit  func(ctx context.Context, err error) error
}

func (s scopeFunc) Enter(ctx context.Context) error {
	if s.enter == nil {
		return nil
	}
	return s.enter(ctx)
}

func (s scopeFunc) Exit(ctx context.Context, err error) error {
	if s.exit == nil {
		return err
	}
	return s.exit(ctx, err)
}

// Defer returns a Scope whose only action is to run fn on exit. The pending
// error, if any, keeps propagating.
func Defer(fn func(ctx context.Context)) Scope {
	return ScopeFunc(nil, func(ctx context.Context, err error) error {
		fn(ctx)
		return err
	})
}

// Recover returns a Scope that suppresses pending errors for which match
// returns true. Other errors keep propagating. match is not called when
// dispatch ends cleanly.
//
// Example:
//
//	evproc.Enter(evproc.Recover(func(err error) bool {
//	    return errors.Is(err, ErrChatNotFound)
//	}))
func Recover(match func(err error) bool) Scope {
	return ScopeFunc(nil, func(_ context.Context, err error) error {
		if err != nil && match(err) {
			return nil
		}
		return err
	})
}

// PanicError carries a panic recovered while a dispatch had scopes open.
// Scopes see it as the pending error; unless one of them suppresses it, the
// engine re-panics with Value once every scope has exited.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type stackEntry struct {
	name  string
	scope Scope
}

// stack holds the scopes entered during one dispatch. It is owned by a
// single Process call and never shared.
type stack struct {
	entries []stackEntry
	onExit  func(ctx context.Context, name string, err error)
}

// enter runs the scope's entry action and, if it succeeds, pushes the scope.
// A scope whose Enter fails was never entered and is not exited.
func (s *stack) enter(ctx context.Context, name string, sc Scope) error {
	if err := sc.Enter(ctx); err != nil {
		return fmt.Errorf("enter %s: %w", name, err)
	}
	s.entries = append(s.entries, stackEntry{name: name, scope: sc})
	return nil
}

// unwind exits every entered scope in reverse order of entry, threading the
// pending error through each Exit. Every scope is exited even if an earlier
// exit fails or panics. The first unrecovered failure stays first; later,
// unrelated exit failures are chained after it.
func (s *stack) unwind(ctx context.Context, err error) error {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		s.entries = s.entries[:i]

		out := exitScope(ctx, e.scope, err)
		err = resolveExit(err, out)
		if s.onExit != nil {
			s.onExit(ctx, e.name, err)
		}
	}
	return err
}

func exitScope(ctx context.Context, sc Scope, pending error) (out error) {
	defer func() {
		if r := recover(); r != nil {
			out = newPanicError(r)
		}
	}()
	return sc.Exit(ctx, pending)
}

func resolveExit(pending, out error) error {
	switch {
	case out == nil:
		return nil
	case pending == nil:
		return out
	case errors.Is(out, pending):
		return out
	default:
		return multierror.Append(pending, out)
	}
}
