package evproc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type dispatchIDKey struct{}

// DispatchID returns the ID of the dispatch running in ctx, or "" outside a
// dispatch. Every Process call gets a fresh ID, available to hooks, handlers
// and scopes.
func DispatchID(ctx context.Context) string {
	id, _ := ctx.Value(dispatchIDKey{}).(string)
	return id
}

func withDispatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, dispatchIDKey{}, id)
}

// newDispatchID returns a time-ordered UUID, falling back to a random one
// when the clock sequence cannot be read.
func newDispatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// WithLogger returns an Option that logs every dispatch stage to logger.
// Handler starts, skips, enters and exits are logged at debug level, stops
// and completions at info level, failures at error level. Each record
// carries the dispatch ID.
//
// Example:
//
//	p := evproc.New(registry, bot, evproc.WithLogger(slog.Default()))
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		WithOnSkip(func(ctx context.Context, handler string) {
			logger.DebugContext(ctx, "handler skipped", dispatchAttr(ctx), slog.String("handler", handler))
		})(o)
		WithOnDispatch(func(ctx context.Context, handler string) {
			logger.DebugContext(ctx, "handler dispatched", dispatchAttr(ctx), slog.String("handler", handler))
		})(o)
		WithOnFailure(func(ctx context.Context, handler string, err error, d time.Duration) {
			logger.ErrorContext(ctx, "handler failed",
				dispatchAttr(ctx),
				slog.String("handler", handler),
				slog.Duration("duration", d),
				slog.Any("error", err),
			)
		})(o)
		WithOnStop(func(ctx context.Context, handler string) {
			logger.InfoContext(ctx, "dispatch stopped", dispatchAttr(ctx), slog.String("handler", handler))
		})(o)
		WithOnEnter(func(ctx context.Context, handler string) {
			logger.DebugContext(ctx, "scope entered", dispatchAttr(ctx), slog.String("handler", handler))
		})(o)
		WithOnExit(func(ctx context.Context, handler string, err error) {
			logger.DebugContext(ctx, "scope exited",
				dispatchAttr(ctx),
				slog.String("handler", handler),
				slog.Any("error", err),
			)
		})(o)
		WithOnComplete(func(ctx context.Context, err error, d time.Duration) {
			if err != nil {
				logger.ErrorContext(ctx, "dispatch failed", dispatchAttr(ctx), slog.Duration("duration", d), slog.Any("error", err))
				return
			}
			logger.InfoContext(ctx, "dispatch complete", dispatchAttr(ctx), slog.Duration("duration", d))
		})(o)
	}
}

func dispatchAttr(ctx context.Context) slog.Attr {
	return slog.String("dispatch_id", DispatchID(ctx))
}
