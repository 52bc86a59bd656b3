// Package evproc provides a minimal event-dispatch engine.
//
// A processor routes each event to an ordered set of handler methods. Each
// handler carries declarative predicates that decide whether it sees the
// event. Handlers can wrap the ones after them in middleware scopes, and any
// handler can halt dispatch for the event.
//
// # Quick Start
//
// Declare the handlers of a processor type once:
//
//	type Event = map[string]any
//
//	type Bot struct {
//	    client Client
//	}
//
//	func (b *Bot) Start(ctx context.Context, ev Event) (evproc.Result, error) {
//	    return evproc.Stop(), b.client.Send(ctx, "welcome!")
//	}
//
//	func (b *Bot) Echo(ctx context.Context, ev Event) (evproc.Result, error) {
//	    return evproc.Continue(), b.client.Send(ctx, ev["text"].(string))
//	}
//
//	var registry = evproc.NewBuilder[*Bot, Event]().
//	    Handle("start", (*Bot).Start,
//	        evproc.When(isType("bot_started")),
//	        evproc.When(isType("message_created"), textIs("/start")),
//	    ).
//	    Handle("echo", (*Bot).Echo, evproc.Always[Event]()).
//	    MustBuild()
//
// Then create a processor per instance and feed it events:
//
//	p := evproc.New(registry, &Bot{client: client})
//	err := p.Process(ctx, ev)
//
// # Predicates
//
// A Predicate is a plain func(E) bool. Predicates given to one When form an
// AND clause, evaluated left to right and stopped at the first false one.
// Several When annotations on a handler are OR-ed in the order given, and
// evaluation stops at the first clause that matches. The example above reads:
//
//	type == "bot_started" || (type == "message_created" && text == "/start")
//
// Always marks a handler as unconditional. Combining Always with any other
// annotation on the same handler is a declaration error reported by Build.
//
// Helpers build common predicates:
//   - All, Any, Not: combinators with the same short-circuit rules
//   - HasFields, FieldEquals, FieldIn, FieldMatches: gjson paths over raw JSON events
//   - Fields: any View-based check, with a custom Inspector
//   - Expr, MustExpr: expr-lang expressions compiled once
//
// # Handler Results
//
// A handler method returns a Result that tells the engine what to do next:
//
//   - Continue: move on to the next handler
//   - Stop (or the zero Result): halt dispatch for this event
//   - Bool, Truthy: Continue or Stop from a value
//   - Await: wait for an asynchronous outcome, then continue iff it is true
//   - Enter: enter a middleware Scope and continue
//
// Only a handler's own outcome controls continuation; entering a scope
// always continues.
//
// # Middleware Scopes
//
// A Scope has Enter and Exit actions. It is entered when its handler
// returns Enter(scope) and stays open while later handlers run. When dispatch
// ends, however it ends, every entered scope exits in reverse order of entry.
// Exit sees the error pending at that point and decides whether it keeps
// propagating:
//
//	func (b *Bot) Guard(ctx context.Context, ev Event) (evproc.Result, error) {
//	    return evproc.Enter(evproc.Recover(func(err error) bool {
//	        return errors.Is(err, ErrRateLimited)
//	    })), nil
//	}
//
// When several exits fail, the first failure stays first and later ones are
// chained after it, so errors.Is matches any of them.
//
// # Hooks
//
// Hooks provide observability without coupling to specific logging or
// metrics systems:
//
//	p := evproc.New(registry, bot,
//	    evproc.WithOnFailure(func(ctx context.Context, handler string, err error, d time.Duration) {
//	        metrics.Incr("evproc.failure", "handler:"+handler)
//	    }),
//	    evproc.WithLogger(slog.Default()),
//	)
//
// Available hooks:
//   - WithOnStart: Called when a dispatch starts, enriches context
//   - WithOnSkip: Called when a handler's predicates do not match
//   - WithOnDispatch: Called just before a handler executes
//   - WithOnSuccess: Called after a handler succeeds
//   - WithOnFailure: Called after a handler fails
//   - WithOnStop: Called when a handler halts dispatch
//   - WithOnEnter, WithOnExit: Called around middleware scopes
//   - WithOnComplete: Called after the dispatch fully unwinds
//
// Every dispatch gets an ID, readable with DispatchID from any context the
// engine hands out.
//
// # Configuration
//
// LoadConfig reads EVPROC_* environment variables (timeout, log level and
// format, log file) and Config.Options turns them into processor options:
//
//	cfg, err := evproc.LoadConfig()
//	if err != nil {
//	    return err
//	}
//	p := evproc.New(registry, bot, cfg.Options(logger)...)
//
// # Thread Safety
//
// A Registry is immutable once built. A Processor keeps no per-dispatch
// state, so Process may be called concurrently; each call owns its scope
// stack. No ordering is defined between concurrent dispatches.
package evproc
