package evproc

// Predicate reports whether an event satisfies a routing condition.
// Predicates should be pure and cheap; the engine calls them synchronously
// with exactly the event being dispatched.
type Predicate[E any] func(ev E) bool

// Clause is an ordered conjunction of predicates. It matches when every
// predicate returns true. Evaluation stops at the first false predicate.
type Clause[E any] []Predicate[E]

// Match reports whether all predicates in the clause hold for ev.
func (c Clause[E]) Match(ev E) bool {
	for _, p := range c {
		if !p(ev) {
			return false
		}
	}
	return true
}

// Group is an ordered disjunction of clauses attached to a handler. It
// matches when at least one clause matches; clauses after the first match
// are never evaluated.
//
// A nil *Group marks an unconditional handler and always matches.
type Group[E any] struct {
	clauses []Clause[E]
}

// Matches reports whether ev satisfies the group.
func (g *Group[E]) Matches(ev E) bool {
	if g == nil {
		return true
	}
	for _, c := range g.clauses {
		if c.Match(ev) {
			return true
		}
	}
	return false
}

// Clauses returns a copy of the group's clauses in evaluation order.
func (g *Group[E]) Clauses() []Clause[E] {
	if g == nil {
		return nil
	}
	out := make([]Clause[E], len(g.clauses))
	for i, c := range g.clauses {
		out[i] = append(Clause[E](nil), c...)
	}
	return out
}

// All returns a Predicate that holds when every predicate holds.
// Predicates after the first false one are not called.
func All[E any](ps ...Predicate[E]) Predicate[E] {
	c := Clause[E](ps)
	return c.Match
}

// Any returns a Predicate that holds when at least one predicate holds.
// Predicates after the first true one are not called.
func Any[E any](ps ...Predicate[E]) Predicate[E] {
	return func(ev E) bool {
		for _, p := range ps {
			if p(ev) {
				return true
			}
		}
		return false
	}
}

// Not returns a Predicate that negates p.
func Not[E any](p Predicate[E]) Predicate[E] {
	return func(ev E) bool {
		return !p(ev)
	}
}
