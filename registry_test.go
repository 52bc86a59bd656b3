package evproc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type recorder struct {
	calls []string
}

func (r *recorder) First(ctx context.Context, ev string) (Result, error) {
	r.calls = append(r.calls, "first")
	return Continue(), nil
}

func (r *recorder) Second(ctx context.Context, ev string) (Result, error) {
	r.calls = append(r.calls, "second")
	return Continue(), nil
}

func isEvent(want string) Predicate[string] {
	return func(ev string) bool { return ev == want }
}

type BuilderSuite struct {
	suite.Suite
	b *Builder[*recorder, string]
}

func (s *BuilderSuite) SetupTest() {
	s.b = NewBuilder[*recorder, string]()
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) TestKeepsDeclarationOrder() {
	s.b.Handle("second", (*recorder).Second, Always[string]())
	s.b.Handle("first", (*recorder).First, Always[string]())

	reg, err := s.b.Build()

	s.Require().NoError(err)
	s.Assert().Equal([]string{"second", "first"}, reg.Names())
	s.Assert().Equal(2, reg.Len())
}

func (s *BuilderSuite) TestAlwaysHasNoGroup() {
	s.b.Handle("first", (*recorder).First, Always[string]())

	reg, err := s.b.Build()

	s.Require().NoError(err)
	s.Assert().Nil(reg.Declarations()[0].Group)
}

func (s *BuilderSuite) TestWhenWithoutPredicatesIsUnconditional() {
	s.b.Handle("first", (*recorder).First, When[string]())

	reg, err := s.b.Build()

	s.Require().NoError(err)
	s.Assert().Nil(reg.Declarations()[0].Group)
}

func (s *BuilderSuite) TestClausesFollowAnnotationOrder() {
	var order []string
	tag := func(name string) Predicate[string] {
		return func(string) bool {
			order = append(order, name)
			return false
		}
	}

	s.b.Handle("first", (*recorder).First,
		When(tag("a1"), tag("a2")),
		When(tag("b1")),
		When(tag("c1")),
	)
	reg, err := s.b.Build()
	s.Require().NoError(err)

	group := reg.Declarations()[0].Group
	s.Require().NotNil(group)
	s.Require().Len(group.Clauses(), 3)

	// Each clause stops at its first (false) predicate.
	group.Matches("ev")
	s.Assert().Equal([]string{"a1", "b1", "c1"}, order)
}

func (s *BuilderSuite) TestClausePredicatesKeepArgumentOrder() {
	p1, p2 := isEvent("x"), isEvent("y")
	s.b.Handle("first", (*recorder).First, When(p1, p2))

	reg, err := s.b.Build()
	s.Require().NoError(err)

	clauses := reg.Declarations()[0].Group.Clauses()
	s.Require().Len(clauses, 1)
	s.Require().Len(clauses[0], 2)
	s.Assert().True(clauses[0][0]("x"))
	s.Assert().True(clauses[0][1]("y"))
}

func (s *BuilderSuite) TestAlwaysAfterWhenIsRejected() {
	s.b.Handle("mixed", (*recorder).First, Always[string](), When(isEvent("a")))

	_, err := s.b.Build()

	s.Assert().ErrorIs(err, ErrMixedAnnotations)
	var derr *DeclarationError
	s.Require().ErrorAs(err, &derr)
	s.Assert().Equal("mixed", derr.Handler)
}

func (s *BuilderSuite) TestWhenAfterAlwaysIsRejected() {
	s.b.Handle("mixed", (*recorder).First, When(isEvent("a")), Always[string]())

	_, err := s.b.Build()

	s.Assert().ErrorIs(err, ErrMixedAnnotations)
}

func (s *BuilderSuite) TestDoubleAlwaysIsRejected() {
	s.b.Handle("twice", (*recorder).First, Always[string](), Always[string]())

	_, err := s.b.Build()

	s.Assert().ErrorIs(err, ErrMixedAnnotations)
}

func (s *BuilderSuite) TestNoAnnotationsIsRejected() {
	s.b.Handle("bare", (*recorder).First)

	_, err := s.b.Build()

	s.Assert().ErrorIs(err, ErrNoAnnotations)
}

func (s *BuilderSuite) TestNilMethodIsRejected() {
	s.b.Handle("nil", nil, Always[string]())

	_, err := s.b.Build()

	s.Assert().ErrorIs(err, ErrNilMethod)
}

func (s *BuilderSuite) TestDuplicateNameIsRejected() {
	s.b.Handle("same", (*recorder).First, Always[string]())
	s.b.Handle("same", (*recorder).Second, Always[string]())

	_, err := s.b.Build()

	s.Assert().ErrorIs(err, ErrDuplicateHandler)
}

func (s *BuilderSuite) TestReportsEveryViolation() {
	s.b.Handle("bare", (*recorder).First)
	s.b.Handle("mixed", (*recorder).Second, Always[string](), When(isEvent("a")))

	_, err := s.b.Build()

	s.Assert().ErrorIs(err, ErrNoAnnotations)
	s.Assert().ErrorIs(err, ErrMixedAnnotations)
	s.Assert().Contains(err.Error(), `"bare"`)
	s.Assert().Contains(err.Error(), `"mixed"`)
}

func (s *BuilderSuite) TestBuildsOnlyOnce() {
	s.b.Handle("first", (*recorder).First, Always[string]())
	_, err := s.b.Build()
	s.Require().NoError(err)

	_, err = s.b.Build()
	s.Assert().ErrorIs(err, ErrSealed)
}

func (s *BuilderSuite) TestHandleAfterBuildIsIgnored() {
	s.b.Handle("first", (*recorder).First, Always[string]())
	reg, err := s.b.Build()
	s.Require().NoError(err)

	s.b.Handle("second", (*recorder).Second, Always[string]())

	s.Assert().Equal([]string{"first"}, reg.Names())
}

func (s *BuilderSuite) TestMustBuildPanicsOnViolation() {
	s.b.Handle("bare", (*recorder).First)

	s.Assert().Panics(func() { s.b.MustBuild() })
}

func (s *BuilderSuite) TestDeclarationsIsACopy() {
	s.b.Handle("first", (*recorder).First, Always[string]())
	reg, err := s.b.Build()
	s.Require().NoError(err)

	decls := reg.Declarations()
	decls[0].Name = "changed"

	s.Assert().Equal([]string{"first"}, reg.Names())
}
